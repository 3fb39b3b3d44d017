package misc

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/2beens/travelblog/internal/telemetry/tracing"
	"github.com/2beens/travelblog/internal/web"
	"github.com/2beens/travelblog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// HealthCheck reports whether a dependency (database, redis) is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	renderer     *web.Renderer
	versionInfo  string
	healthChecks map[string]HealthCheck
}

func NewHandler(
	renderer *web.Renderer,
	versionInfo string,
	healthChecks map[string]HealthCheck,
) *Handler {
	return &Handler{
		renderer:     renderer,
		versionInfo:  versionInfo,
		healthChecks: healthChecks,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/about", handler.handleAbout).Methods("GET").Name("about")
	mainRouter.HandleFunc("/contact", handler.handleContact).Methods("GET", "POST").Name("contact")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")
	mainRouter.HandleFunc("/health", handler.handleHealth).Methods("GET").Name("health")
}

func (handler *Handler) handleAbout(w http.ResponseWriter, r *http.Request) {
	handler.renderer.Render(w, r, http.StatusOK, web.PageAbout, &web.ViewData{Title: "About"})
}

func (handler *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.contact")
	defer span.End()

	if r.Method == http.MethodGet {
		handler.renderer.Render(w, r, http.StatusOK, web.PageContact, &web.ViewData{
			Title:   "Contact",
			Form:    &web.ContactForm{},
			Content: false,
		})
		return
	}

	var form web.ContactForm
	if errs := web.DecodeForm(r, &form); errs != nil {
		handler.renderer.Render(w, r, http.StatusBadRequest, web.PageContact, &web.ViewData{
			Title:   "Contact",
			Form:    &form,
			Errors:  errs,
			Content: false,
		})
		return
	}

	// messages are not stored anywhere, the log is the only trace of them
	span.SetAttributes(attribute.String("contact.email", form.Email))
	log.Infof("contact message from [%s] <%s> phone [%s]: %s", form.Name, form.Email, form.Phone, form.Message)

	handler.renderer.Render(w, r, http.StatusOK, web.PageContact, &web.ViewData{
		Title:   "Contact",
		Content: true,
	})
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}

func (handler *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(handler.healthChecks))
	for name := range handler.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		if err := handler.healthChecks[name](ctx); err != nil {
			log.Errorf("health check [%s] failed: %s", name, err)
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		pkg.WriteResponse(w, pkg.ContentType.Text, "unhealthy: "+strings.Join(failed, ", "), http.StatusServiceUnavailable)
		return
	}

	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}
