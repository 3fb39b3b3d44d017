package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/2beens/travelblog/internal/auth"
	"github.com/2beens/travelblog/internal/telemetry/metrics"
	"github.com/2beens/travelblog/internal/web"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	msgAlreadySignedUp   = "You've already signed up with that email, log in instead!"
	msgInvalidCredential = "Invalid email or password."
	msgLoginRequired     = "Please log in to access this page."
)

type sessionManager interface {
	Start(ctx context.Context, w http.ResponseWriter, identity *auth.Identity) error
	End(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

type Handler struct {
	service        *Service
	sessions       sessionManager
	renderer       *web.Renderer
	metricsManager *metrics.Manager
}

func NewHandler(
	service *Service,
	sessions sessionManager,
	renderer *web.Renderer,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		service:        service,
		sessions:       sessions,
		renderer:       renderer,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/register", handler.handleRegisterForm).Methods("GET").Name("register")
	router.HandleFunc("/register", handler.handleRegister).Methods("POST").Name("register-post")
	router.HandleFunc("/login", handler.handleLoginForm).Methods("GET").Name("login")
	router.HandleFunc("/login", handler.handleLogin).Methods("POST").Name("login-post")
	router.HandleFunc("/logout", handler.handleLogout).Methods("GET").Name("logout")
	router.HandleFunc("/user", handler.handleUser).Methods("GET").Name("user")
}

func (handler *Handler) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	handler.renderer.Render(w, r, http.StatusOK, web.PageRegister, &web.ViewData{
		Title: "Register",
		Form:  &web.RegisterForm{},
	})
}

func (handler *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var form web.RegisterForm
	if errs := web.DecodeForm(r, &form); errs != nil {
		form.Password = ""
		handler.renderer.Render(w, r, http.StatusBadRequest, web.PageRegister, &web.ViewData{
			Title:  "Register",
			Form:   &form,
			Errors: errs,
		})
		return
	}

	user, err := handler.service.Register(r.Context(), form.Name, form.Email, form.Password)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			web.Redirect(w, r, "/login", msgAlreadySignedUp)
			return
		}
		log.Errorf("register user: %s", err)
		handler.renderer.InternalError(w, r)
		return
	}

	handler.metricsManager.CounterUsersRegistered.Inc()

	if err := handler.sessions.Start(r.Context(), w, user.Identity()); err != nil {
		log.Errorf("start session for new user %d: %s", user.ID, err)
		web.Redirect(w, r, "/login", "Registered, but logging in failed. Please log in.")
		return
	}

	web.Redirect(w, r, "/")
}

func (handler *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	handler.renderer.Render(w, r, http.StatusOK, web.PageLogin, &web.ViewData{
		Title: "Log In",
		Form:  &web.LoginForm{},
	})
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form web.LoginForm
	if errs := web.DecodeForm(r, &form); errs != nil {
		form.Password = ""
		handler.renderer.Render(w, r, http.StatusBadRequest, web.PageLogin, &web.ViewData{
			Title:  "Log In",
			Form:   &form,
			Errors: errs,
		})
		return
	}

	user, err := handler.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			handler.metricsManager.CounterFailedLogins.Inc()
			web.Redirect(w, r, "/login", msgInvalidCredential)
			return
		}
		log.Errorf("authenticate: %s", err)
		handler.renderer.InternalError(w, r)
		return
	}

	if err := handler.sessions.Start(r.Context(), w, user.Identity()); err != nil {
		log.Errorf("start session for user %d: %s", user.ID, err)
		handler.renderer.InternalError(w, r)
		return
	}

	log.Debugf("user %d logged in", user.ID)
	web.Redirect(w, r, "/")
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := handler.sessions.End(r.Context(), w, r); err != nil {
		log.Errorf("logout: %s", err)
	}
	web.Redirect(w, r, "/")
}

func (handler *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	if err := auth.Require(auth.IdentityFromContext(r.Context())); err != nil {
		web.Redirect(w, r, "/login", msgLoginRequired)
		return
	}

	handler.renderer.Render(w, r, http.StatusOK, web.PageUser, &web.ViewData{
		Title: "Profile",
	})
}
