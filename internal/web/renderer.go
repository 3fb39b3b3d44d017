package web

import (
	"bytes"
	"crypto/md5"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/2beens/travelblog/internal/auth"
	"github.com/2beens/travelblog/pkg"

	"github.com/gorilla/csrf"
	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	PageIndex       = "index"
	PagePost        = "post"
	PageNewEditPost = "new-edit-post"
	PageExplore     = "explore"
	PageLogin       = "login"
	PageRegister    = "register"
	PageUser        = "user"
	PageAbout       = "about"
	PageContact     = "contact"
	PageNotFound    = "not-found"
	PageError       = "error"
)

// CSRFFieldName is the hidden form field (and delete link query param) carrying the csrf token.
const CSRFFieldName = "csrf_token"

// post bodies and comments are user provided rich text
var richTextPolicy = bluemonday.UGCPolicy()

var pages = []string{
	PageIndex,
	PagePost,
	PageNewEditPost,
	PageExplore,
	PageLogin,
	PageRegister,
	PageUser,
	PageAbout,
	PageContact,
	PageNotFound,
	PageError,
}

// ViewData is passed to every page template. Content holds the page specific data.
type ViewData struct {
	Title     string
	Identity  *auth.Identity
	Flashes   []string
	Year      int
	CSRFToken string
	Form      any
	Errors    ValidationErrors
	Content   any
}

type Renderer struct {
	templates map[string]*template.Template
	nowFunc   func() time.Time
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		nowFunc:   time.Now,
	}

	funcs := template.FuncMap{
		"gravatar": Gravatar,
		"date":     FormatDate,
		"richText": RichText,
	}

	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(
			templatesFS,
			"templates/layout.html",
			"templates/"+page+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		r.templates[page] = tmpl
	}

	return r, nil
}

// Render fills in the common view data (identity, pending flashes, year) and writes the page.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, page string, data *ViewData) {
	tmpl, ok := r.templates[page]
	if !ok {
		log.Errorf("render: unknown page: %s", page)
		pkg.WriteResponse(w, pkg.ContentType.Text, "internal error", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = &ViewData{}
	}
	data.Identity = auth.IdentityFromContext(req.Context())
	data.Flashes = append(data.Flashes, PopFlashes(w, req)...)
	data.Year = r.nowFunc().Year()
	data.CSRFToken = csrf.Token(req)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Errorf("render page %s: %s", page, err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "internal error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, buf.Bytes(), status)
}

func (r *Renderer) NotFound(w http.ResponseWriter, req *http.Request) {
	r.Render(w, req, http.StatusNotFound, PageNotFound, &ViewData{Title: "Not Found"})
}

func (r *Renderer) Forbidden(w http.ResponseWriter, req *http.Request, message string) {
	r.Render(w, req, http.StatusForbidden, PageError, &ViewData{
		Title:   "Forbidden",
		Content: message,
	})
}

func (r *Renderer) RequestTooLarge(w http.ResponseWriter, req *http.Request) {
	r.Render(w, req, http.StatusRequestEntityTooLarge, PageError, &ViewData{
		Title:   "Too Large",
		Content: "File too large.",
	})
}

func (r *Renderer) InternalError(w http.ResponseWriter, req *http.Request) {
	r.Render(w, req, http.StatusInternalServerError, PageError, &ViewData{
		Title:   "Error",
		Content: "Something went wrong, please try again later.",
	})
}

// RichText strips scripts, event handlers and other unsafe markup from user provided HTML.
func RichText(s string) template.HTML {
	return template.HTML(richTextPolicy.Sanitize(s))
}

// Gravatar returns the avatar image URL for the email (size 100, retro default, g rating).
func Gravatar(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=100&d=retro&r=g", hex.EncodeToString(sum[:]))
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 02, 2006")
}
