package blog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/2beens/travelblog/internal/auth"
	"github.com/2beens/travelblog/internal/countries"
	"github.com/2beens/travelblog/internal/telemetry/metrics"
	"github.com/2beens/travelblog/internal/telemetry/tracing"
	"github.com/2beens/travelblog/internal/uploads"
	"github.com/2beens/travelblog/internal/web"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=blog_test

type blogService interface {
	ListRecentPosts(ctx context.Context, limit int) ([]*PostView, error)
	SearchPosts(ctx context.Context, query string, page, size int) (*Page, error)
	SortPosts(ctx context.Context, dir SortDirection, page, size int) (*Page, error)
	GetPost(ctx context.Context, id int) (*PostView, error)
	Comments(ctx context.Context, postID int) ([]*CommentView, error)
	Countries(ctx context.Context) ([]*countries.Country, error)
	AddComment(ctx context.Context, identity *auth.Identity, postID int, text string) (*Comment, error)
	CreatePost(ctx context.Context, identity *auth.Identity, input PostInput) (*Post, error)
	EditPost(ctx context.Context, identity *auth.Identity, id int, input PostInput) (*Post, error)
	DeletePost(ctx context.Context, identity *auth.Identity, id int) error
}

const (
	msgLoginToComment = "You need to login or register to comment."
	msgLoginToPost    = "You need to login or register to post blog."
	msgLoginToEdit    = "You need to login or register to edit blog."
	msgLoginToDelete  = "You need to login or register to delete blog."
	msgOnlyAuthor     = "Only the author of this post can change it."
	msgPostDeleted    = "Post deleted."
	// in-memory part of a multipart form, the rest goes to temp files
	multipartMaxMemory = 8 << 20
)

// PostPageContent is the content of the single post page.
type PostPageContent struct {
	Post     *PostView
	Comments []*CommentView
	CanEdit  bool
}

// PostFormContent is the content of the new and edit post page.
type PostFormContent struct {
	IsEdit       bool
	PostID       int
	CurrentImage string
	Countries    []*countries.Country
}

// ExploreContent is the content of the explore page. Query and Sort are carried in page links.
type ExploreContent struct {
	Page    *Page
	Query   string
	Sort    string
	PrevURL string
	NextURL string
}

type HandlerParams struct {
	HomePostsCount  int
	ExplorePageSize int
	MaxUploadSize   int64
}

type Handler struct {
	service        blogService
	renderer       *web.Renderer
	metricsManager *metrics.Manager
	params         HandlerParams
}

func NewHandler(
	service blogService,
	renderer *web.Renderer,
	metricsManager *metrics.Manager,
	params HandlerParams,
) *Handler {
	if params.HomePostsCount <= 0 {
		params.HomePostsCount = 3
	}
	if params.ExplorePageSize <= 0 {
		params.ExplorePageSize = DefaultPageSize
	}
	if params.MaxUploadSize <= 0 {
		params.MaxUploadSize = 10 << 20
	}
	return &Handler{
		service:        service,
		renderer:       renderer,
		metricsManager: metricsManager,
		params:         params,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/", handler.handleHome).Methods("GET").Name("home")
	router.HandleFunc("/post/{id:[0-9]+}", handler.handleShowPost).Methods("GET").Name("show-post")
	router.HandleFunc("/post/{id:[0-9]+}", handler.handleAddComment).Methods("POST").Name("add-comment")
	router.HandleFunc("/new-post", handler.handleNewPostForm).Methods("GET").Name("new-post")
	router.HandleFunc("/new-post", handler.handleNewPost).Methods("POST").Name("new-post-submit")
	router.HandleFunc("/edit-post/{id:[0-9]+}", handler.handleEditPostForm).Methods("GET").Name("edit-post")
	router.HandleFunc("/edit-post/{id:[0-9]+}", handler.handleEditPost).Methods("POST").Name("edit-post-submit")
	router.HandleFunc("/explore", handler.handleExplore).Methods("GET").Name("explore")
	router.HandleFunc("/explore", handler.handleExploreForm).Methods("POST").Name("explore-submit")
	router.HandleFunc("/delete/{id:[0-9]+}", handler.handleDeletePost).Methods("GET").Name("delete-post")
}

func (handler *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	posts, err := handler.service.ListRecentPosts(r.Context(), handler.params.HomePostsCount)
	if err != nil {
		log.Errorf("list recent posts: %s", err)
		handler.renderer.InternalError(w, r)
		return
	}

	handler.renderer.Render(w, r, http.StatusOK, web.PageIndex, &web.ViewData{
		Content: posts,
	})
}

func (handler *Handler) handleShowPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := handler.postID(w, r)
	if !ok {
		return
	}
	handler.renderPost(w, r, http.StatusOK, postID, &web.CommentForm{}, nil)
}

func (handler *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.addComment")
	defer span.End()

	postID, ok := handler.postID(w, r)
	if !ok {
		return
	}

	identity := auth.IdentityFromContext(ctx)
	if auth.Require(identity) != nil {
		web.Redirect(w, r, "/login", msgLoginToComment)
		return
	}

	var form web.CommentForm
	if errs := web.DecodeForm(r, &form); errs != nil {
		handler.renderPost(w, r, http.StatusBadRequest, postID, &form, errs)
		return
	}

	comment, err := handler.service.AddComment(ctx, identity, postID, form.Text)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAuthRequired):
			web.Redirect(w, r, "/login", msgLoginToComment)
		case errors.Is(err, ErrPostNotFound):
			handler.renderer.NotFound(w, r)
		case errors.Is(err, ErrCommentEmpty):
			handler.renderPost(w, r, http.StatusBadRequest, postID, &form, web.ValidationErrors{
				"comment_text": "This field is required.",
			})
		default:
			log.Errorf("add comment to post %d: %s", postID, err)
			handler.renderer.InternalError(w, r)
		}
		return
	}

	handler.metricsManager.CounterCommentsAdded.Inc()
	log.Tracef("comment %d added to post %d", comment.ID, postID)

	web.Redirect(w, r, fmt.Sprintf("/post/%d", postID))
}

func (handler *Handler) renderPost(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	postID int,
	form *web.CommentForm,
	errs web.ValidationErrors,
) {
	post, err := handler.service.GetPost(r.Context(), postID)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			handler.renderer.NotFound(w, r)
			return
		}
		log.Errorf("get post %d: %s", postID, err)
		handler.renderer.InternalError(w, r)
		return
	}

	comments, err := handler.service.Comments(r.Context(), postID)
	if err != nil {
		log.Errorf("get post %d comments: %s", postID, err)
		handler.renderer.InternalError(w, r)
		return
	}

	identity := auth.IdentityFromContext(r.Context())
	handler.renderer.Render(w, r, status, web.PagePost, &web.ViewData{
		Title:  post.Title,
		Form:   form,
		Errors: errs,
		Content: &PostPageContent{
			Post:     post,
			Comments: comments,
			CanEdit:  identity != nil && identity.UserID == post.AuthorID,
		},
	})
}

func (handler *Handler) handleNewPostForm(w http.ResponseWriter, r *http.Request) {
	if auth.Require(auth.IdentityFromContext(r.Context())) != nil {
		web.Redirect(w, r, "/login", msgLoginToPost)
		return
	}
	handler.renderPostForm(w, r, http.StatusOK, &PostFormContent{}, &web.PostForm{}, nil)
}

func (handler *Handler) handleNewPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.newPost")
	defer span.End()

	identity := auth.IdentityFromContext(ctx)
	if auth.Require(identity) != nil {
		web.Redirect(w, r, "/login", msgLoginToPost)
		return
	}

	content := &PostFormContent{}
	defer removeMultipartFiles(r)
	form, image, errs := handler.decodePostForm(w, r)
	if errs != nil {
		handler.renderPostForm(w, r, http.StatusBadRequest, content, form, errs)
		return
	}
	defer closeImage(image)

	post, err := handler.service.CreatePost(ctx, identity, PostInput{
		Title:       form.Title,
		Subtitle:    form.Subtitle,
		Body:        form.Body,
		CountryCode: form.CountryCode,
		Image:       image,
	})
	if err != nil {
		if errs := postFormErrors(err); errs != nil {
			handler.renderPostForm(w, r, http.StatusBadRequest, content, form, errs)
			return
		}
		if errors.Is(err, auth.ErrAuthRequired) {
			web.Redirect(w, r, "/login", msgLoginToPost)
			return
		}
		log.Errorf("create post: %s", err)
		handler.renderer.InternalError(w, r)
		return
	}

	handler.metricsManager.CounterPostsCreated.Inc()
	log.Debugf("new post %d: [%s] added", post.ID, post.Title)

	web.Redirect(w, r, "/")
}

func (handler *Handler) handleEditPostForm(w http.ResponseWriter, r *http.Request) {
	postID, ok := handler.postID(w, r)
	if !ok {
		return
	}

	identity := auth.IdentityFromContext(r.Context())
	if auth.Require(identity) != nil {
		web.Redirect(w, r, "/login", msgLoginToEdit)
		return
	}

	post, err := handler.service.GetPost(r.Context(), postID)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			handler.renderer.NotFound(w, r)
			return
		}
		log.Errorf("get post %d: %s", postID, err)
		handler.renderer.InternalError(w, r)
		return
	}

	if post.AuthorID != identity.UserID {
		handler.renderer.Forbidden(w, r, msgOnlyAuthor)
		return
	}

	handler.renderPostForm(w, r, http.StatusOK, &PostFormContent{
		IsEdit:       true,
		PostID:       post.ID,
		CurrentImage: post.Image,
	}, &web.PostForm{
		Title:       post.Title,
		Subtitle:    post.Subtitle,
		CountryCode: post.CountryCode,
		Body:        post.Body,
	}, nil)
}

func (handler *Handler) handleEditPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.editPost")
	defer span.End()

	postID, ok := handler.postID(w, r)
	if !ok {
		return
	}

	identity := auth.IdentityFromContext(ctx)
	if auth.Require(identity) != nil {
		web.Redirect(w, r, "/login", msgLoginToEdit)
		return
	}

	defer removeMultipartFiles(r)
	form, image, errs := handler.decodePostForm(w, r)
	if errs != nil {
		handler.renderPostForm(w, r, http.StatusBadRequest, handler.editFormContent(ctx, postID), form, errs)
		return
	}
	defer closeImage(image)

	_, err := handler.service.EditPost(ctx, identity, postID, PostInput{
		Title:       form.Title,
		Subtitle:    form.Subtitle,
		Body:        form.Body,
		CountryCode: form.CountryCode,
		Image:       image,
	})
	if err != nil {
		if errs := postFormErrors(err); errs != nil {
			handler.renderPostForm(w, r, http.StatusBadRequest, handler.editFormContent(ctx, postID), form, errs)
			return
		}
		switch {
		case errors.Is(err, auth.ErrAuthRequired):
			web.Redirect(w, r, "/login", msgLoginToEdit)
		case errors.Is(err, ErrPostNotFound):
			handler.renderer.NotFound(w, r)
		case errors.Is(err, ErrForbidden):
			handler.renderer.Forbidden(w, r, msgOnlyAuthor)
		default:
			log.Errorf("edit post %d: %s", postID, err)
			handler.renderer.InternalError(w, r)
		}
		return
	}

	web.Redirect(w, r, fmt.Sprintf("/post/%d", postID))
}

func (handler *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	postID, ok := handler.postID(w, r)
	if !ok {
		return
	}

	err := handler.service.DeletePost(r.Context(), auth.IdentityFromContext(r.Context()), postID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAuthRequired):
			web.Redirect(w, r, "/login", msgLoginToDelete)
		case errors.Is(err, ErrPostNotFound):
			handler.renderer.NotFound(w, r)
		case errors.Is(err, ErrForbidden):
			handler.renderer.Forbidden(w, r, msgOnlyAuthor)
		default:
			log.Errorf("delete post %d: %s", postID, err)
			handler.renderer.InternalError(w, r)
		}
		return
	}

	handler.metricsManager.CounterPostsDeleted.Inc()
	web.Redirect(w, r, "/", msgPostDeleted)
}

func (handler *Handler) handleExplore(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	handler.renderExplore(w, r, http.StatusOK, query.Get("q"), query.Get("sort"), parsePage(query.Get("page")), nil)
}

// handleExploreForm takes either the search or the sort form and redirects to the matching
// explore listing, so the filter lives in the URL and survives pagination.
func (handler *Handler) handleExploreForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("explore, parse form error: %s", err)
		handler.renderExplore(w, r, http.StatusBadRequest, "", "", 1, web.ValidationErrors{"searched": "Invalid form."})
		return
	}

	if r.PostForm.Has("sort_type") {
		var form web.SortForm
		if errs := web.DecodeForm(r, &form); errs != nil {
			handler.renderExplore(w, r, http.StatusBadRequest, "", "", 1, errs)
			return
		}
		web.Redirect(w, r, exploreURL("", form.SortType, 1))
		return
	}

	var form web.SearchForm
	if errs := web.DecodeForm(r, &form); errs != nil {
		handler.renderExplore(w, r, http.StatusBadRequest, "", "", 1, errs)
		return
	}
	web.Redirect(w, r, exploreURL(form.Searched, "", 1))
}

func (handler *Handler) renderExplore(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	query, sort string,
	page int,
	errs web.ValidationErrors,
) {
	var (
		postsPage *Page
		err       error
	)
	if query != "" {
		postsPage, err = handler.service.SearchPosts(r.Context(), query, page, handler.params.ExplorePageSize)
	} else {
		sort = string(ParseSortDirection(sort))
		postsPage, err = handler.service.SortPosts(r.Context(), SortDirection(sort), page, handler.params.ExplorePageSize)
	}
	if err != nil {
		log.Errorf("explore page %d, query [%s]: %s", page, query, err)
		handler.renderer.InternalError(w, r)
		return
	}

	content := &ExploreContent{
		Page:  postsPage,
		Query: query,
		Sort:  sort,
	}
	if postsPage.HasPrev {
		content.PrevURL = exploreURL(query, sort, postsPage.Page-1)
	}
	if postsPage.HasNext {
		content.NextURL = exploreURL(query, sort, postsPage.Page+1)
	}

	handler.renderer.Render(w, r, status, web.PageExplore, &web.ViewData{
		Title:   "Explore",
		Form:    &web.SearchForm{Searched: query},
		Errors:  errs,
		Content: content,
	})
}

func (handler *Handler) renderPostForm(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	content *PostFormContent,
	form *web.PostForm,
	errs web.ValidationErrors,
) {
	allCountries, err := handler.service.Countries(r.Context())
	if err != nil {
		log.Errorf("get countries: %s", err)
		handler.renderer.InternalError(w, r)
		return
	}
	content.Countries = allCountries

	title := "New Post"
	if content.IsEdit {
		title = "Edit Post"
	}
	handler.renderer.Render(w, r, status, web.PageNewEditPost, &web.ViewData{
		Title:   title,
		Form:    form,
		Errors:  errs,
		Content: content,
	})
}

// decodePostForm reads the multipart post form, limited to the max upload size.
func (handler *Handler) decodePostForm(w http.ResponseWriter, r *http.Request) (*web.PostForm, *uploads.File, web.ValidationErrors) {
	form := &web.PostForm{}

	r.Body = http.MaxBytesReader(w, r.Body, handler.params.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return form, nil, web.ValidationErrors{"image": "File too large."}
		}
		log.Errorf("parse post form: %s", err)
		return form, nil, web.ValidationErrors{"image": "Cannot read the submitted form."}
	}

	errs := web.DecodeForm(r, form)
	image, imageErrs := web.FormImage(r, "image")
	for field, msg := range imageErrs {
		if errs == nil {
			errs = web.ValidationErrors{}
		}
		errs[field] = msg
	}
	if errs != nil {
		closeImage(image)
		return form, nil, errs
	}

	return form, image, nil
}

// editFormContent is used when an edit form is shown again with errors; it keeps the current image visible.
func (handler *Handler) editFormContent(ctx context.Context, postID int) *PostFormContent {
	content := &PostFormContent{IsEdit: true, PostID: postID}
	post, err := handler.service.GetPost(ctx, postID)
	if err != nil {
		log.Debugf("edit form for post %d: current image: %s", postID, err)
		return content
	}
	content.CurrentImage = post.Image
	return content
}

// postID reads the id path var. Ids are postgres SERIAL (int4), anything out of range cannot exist.
func (handler *Handler) postID(w http.ResponseWriter, r *http.Request) (int, bool) {
	postID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 32)
	if err != nil || postID <= 0 {
		handler.renderer.NotFound(w, r)
		return 0, false
	}
	return int(postID), true
}

// postFormErrors maps service errors caused by the submitted values to form errors.
func postFormErrors(err error) web.ValidationErrors {
	switch {
	case errors.Is(err, ErrDuplicateTitle):
		return web.ValidationErrors{"title": "A post with this title already exists."}
	case errors.Is(err, countries.ErrCountryNotFound):
		return web.ValidationErrors{"country": "Unknown country."}
	case errors.Is(err, ErrPostFieldsEmpty):
		return web.ValidationErrors{"body": "Title, subtitle and content are required."}
	case errors.Is(err, uploads.ErrNotAnImage), errors.Is(err, uploads.ErrInvalidFileName):
		return web.ValidationErrors{"image": "Images only!"}
	}
	return nil
}

func removeMultipartFiles(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		log.Warnf("remove multipart temp files: %s", err)
	}
}

func closeImage(image *uploads.File) {
	if err := image.Close(); err != nil {
		log.Warnf("close uploaded image: %s", err)
	}
}

func parsePage(s string) int {
	page, err := strconv.Atoi(s)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func exploreURL(query, sort string, page int) string {
	values := url.Values{}
	if query != "" {
		values.Set("q", query)
	}
	if sort != "" && sort != string(SortDesc) {
		values.Set("sort", sort)
	}
	if page > 1 {
		values.Set("page", strconv.Itoa(page))
	}
	if len(values) == 0 {
		return "/explore"
	}
	return "/explore?" + values.Encode()
}
