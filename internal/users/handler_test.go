package users

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/2beens/travelblog/internal/auth"
	"github.com/2beens/travelblog/internal/telemetry/metrics"
	"github.com/2beens/travelblog/internal/web"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionsFake struct {
	started  []*auth.Identity
	ended    int
	startErr error
}

func (s *sessionsFake) Start(_ context.Context, w http.ResponseWriter, identity *auth.Identity) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = append(s.started, identity)
	http.SetCookie(w, &http.Cookie{Name: auth.SessionCookieName, Value: "signed"})
	return nil
}

func (s *sessionsFake) End(_ context.Context, _ http.ResponseWriter, _ *http.Request) error {
	s.ended++
	return nil
}

type handlerTestEnv struct {
	router   *mux.Router
	repo     *repoMock
	sessions *sessionsFake
	metrics  *metrics.Manager
}

func newHandlerTestEnv(t *testing.T) *handlerTestEnv {
	t.Helper()

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	service, repo := newTestService()
	sessions := &sessionsFake{}
	metricsManager := metrics.NewTestManager()

	router := mux.NewRouter()
	NewHandler(service, sessions, renderer, metricsManager).SetupRoutes(router)

	return &handlerTestEnv{
		router:   router,
		repo:     repo,
		sessions: sessions,
		metrics:  metricsManager,
	}
}

func postForm(router http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandler_Routes(t *testing.T) {
	env := newHandlerTestEnv(t)

	for caseName, route := range map[string]struct {
		name   string
		path   string
		method string
	}{
		"register-get":  {name: "register", path: "/register", method: "GET"},
		"register-post": {name: "register-post", path: "/register", method: "POST"},
		"login-get":     {name: "login", path: "/login", method: "GET"},
		"login-post":    {name: "login-post", path: "/login", method: "POST"},
		"logout":        {name: "logout", path: "/logout", method: "GET"},
		"user":          {name: "user", path: "/user", method: "GET"},
	} {
		t.Run(caseName, func(t *testing.T) {
			req, err := http.NewRequest(route.method, route.path, nil)
			require.NoError(t, err)

			routeMatch := &mux.RouteMatch{}
			require.True(t, env.router.Match(req, routeMatch))
			assert.Equal(t, route.name, routeMatch.Route.GetName())
		})
	}
}

func TestHandler_RegisterForm(t *testing.T) {
	env := newHandlerTestEnv(t)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/register", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Sign Me Up!")
}

func TestHandler_Register(t *testing.T) {
	env := newHandlerTestEnv(t)

	rr := postForm(env.router, "/register", url.Values{
		"name":     {"Ann"},
		"email":    {"ann@x.com"},
		"password": {"pw123"},
	})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	require.Len(t, env.sessions.started, 1)
	assert.Equal(t, "ann@x.com", env.sessions.started[0].Email)
	assert.Len(t, env.repo.Users, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CounterUsersRegistered))

	// second registration with the same email
	rr = postForm(env.router, "/register", url.Values{
		"name":     {"Ann again"},
		"email":    {"ann@x.com"},
		"password": {"pw456"},
	})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	// no new session, the first one stays
	assert.Len(t, env.sessions.started, 1)
	assert.Len(t, env.repo.Users, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CounterUsersRegistered))
}

func TestHandler_Register_InvalidForm(t *testing.T) {
	env := newHandlerTestEnv(t)

	rr := postForm(env.router, "/register", url.Values{
		"name":     {"Ann"},
		"email":    {"not-an-email"},
		"password": {"pw123"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid email address.")
	// the password is never echoed back
	assert.NotContains(t, rr.Body.String(), "pw123")
	assert.Empty(t, env.repo.Users)
	assert.Empty(t, env.sessions.started)
}

func TestHandler_Login(t *testing.T) {
	env := newHandlerTestEnv(t)

	postForm(env.router, "/register", url.Values{
		"name":     {"Ann"},
		"email":    {"ann@x.com"},
		"password": {"pw123"},
	})
	require.Len(t, env.sessions.started, 1)

	rr := postForm(env.router, "/login", url.Values{
		"email":    {"ann@x.com"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Len(t, env.sessions.started, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CounterFailedLogins))

	rr = postForm(env.router, "/login", url.Values{
		"email":    {"nobody@x.com"},
		"password": {"pw123"},
	})
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.CounterFailedLogins))

	rr = postForm(env.router, "/login", url.Values{
		"email":    {"ann@x.com"},
		"password": {"pw123"},
	})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	assert.Len(t, env.sessions.started, 2)

	rr = postForm(env.router, "/login", url.Values{"email": {"ann@x.com"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Login_SessionError(t *testing.T) {
	env := newHandlerTestEnv(t)
	postForm(env.router, "/register", url.Values{
		"name":     {"Ann"},
		"email":    {"ann@x.com"},
		"password": {"pw123"},
	})

	env.sessions.startErr = errors.New("redis down")
	rr := postForm(env.router, "/login", url.Values{
		"email":    {"ann@x.com"},
		"password": {"pw123"},
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandler_Logout(t *testing.T) {
	env := newHandlerTestEnv(t)

	for i := 1; i <= 2; i++ {
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logout", nil))
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))
		assert.Equal(t, i, env.sessions.ended)
	}
}

func TestHandler_User(t *testing.T) {
	env := newHandlerTestEnv(t)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/user", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UserID: 1, Name: "Ann", Email: "ann@x.com"}))
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ann@x.com")
}
