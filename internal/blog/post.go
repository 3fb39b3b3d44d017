package blog

import (
	"errors"
	"time"

	"github.com/2beens/travelblog/internal/uploads"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrDuplicateTitle  = errors.New("post with this title already exists")
	ErrForbidden       = errors.New("only the author can change this post")
	ErrPostFieldsEmpty = errors.New("post title, subtitle or body empty")
	ErrCommentEmpty    = errors.New("comment text empty")
)

type Post struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	Body      string    `json:"body"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	AuthorID  int       `json:"author_id"`
	// nil when the post is not tagged with a country
	CountryID *int `json:"country_id"`
}

// PostView is a post with its author and country resolved, as shown on pages.
type PostView struct {
	Post
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
}

type Comment struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	AuthorID  int       `json:"author_id"`
	PostID    int       `json:"post_id"`
}

type CommentView struct {
	Comment
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

// PostInput carries the fields of a new or edited post. Image is optional.
type PostInput struct {
	Title       string
	Subtitle    string
	Body        string
	CountryCode string
	Image       *uploads.File
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection falls back to newest first for anything but "asc".
func ParseSortDirection(s string) SortDirection {
	if SortDirection(s) == SortAsc {
		return SortAsc
	}
	return SortDesc
}

type Page struct {
	Posts      []*PostView `json:"posts"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
	HasPrev    bool        `json:"has_prev"`
	HasNext    bool        `json:"has_next"`
}

func newPage(posts []*PostView, page, size, total int) *Page {
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	return &Page{
		Posts:      posts,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}
}
