package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2beens/travelblog/internal/auth"
	"github.com/2beens/travelblog/internal/countries"
	"github.com/2beens/travelblog/internal/telemetry/tracing"
	"github.com/2beens/travelblog/internal/uploads"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultPageSize = 4

type postsRepo interface {
	InTx(ctx context.Context, fn func(repo postsRepo) error) error
	AddPost(ctx context.Context, post *Post) error
	UpdatePost(ctx context.Context, post *Post) error
	DeletePost(ctx context.Context, id int) error
	GetPost(ctx context.Context, id int) (*PostView, error)
	LockPost(ctx context.Context, id int) (*Post, error)
	ImageInUse(ctx context.Context, image string) (bool, error)
	Recent(ctx context.Context, limit int) ([]*PostView, error)
	PostsPage(ctx context.Context, dir SortDirection, page, size int) ([]*PostView, error)
	Search(ctx context.Context, query string, page, size int) ([]*PostView, int, error)
	CountPosts(ctx context.Context) (int, error)
	AddComment(ctx context.Context, comment *Comment) error
	Comments(ctx context.Context, postID int) ([]*CommentView, error)
}

type countriesRepo interface {
	All(ctx context.Context) ([]*countries.Country, error)
	ByCode(ctx context.Context, code string) (*countries.Country, error)
}

type imageStore interface {
	Save(ctx context.Context, file *uploads.File) (string, error)
	Remove(ctx context.Context, name string) error
}

type Service struct {
	repo          postsRepo
	countriesRepo countriesRepo
	images        imageStore
}

func NewService(repo postsRepo, countriesRepo countriesRepo, images imageStore) *Service {
	return &Service{
		repo:          repo,
		countriesRepo: countriesRepo,
		images:        images,
	}
}

func (s *Service) ListRecentPosts(ctx context.Context, limit int) ([]*PostView, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.repo.Recent(ctx, limit)
}

func (s *Service) GetPost(ctx context.Context, id int) (*PostView, error) {
	return s.repo.GetPost(ctx, id)
}

func (s *Service) Comments(ctx context.Context, postID int) ([]*CommentView, error) {
	return s.repo.Comments(ctx, postID)
}

func (s *Service) Countries(ctx context.Context) ([]*countries.Country, error) {
	return s.countriesRepo.All(ctx)
}

// SortPosts pages through all posts by creation time.
func (s *Service) SortPosts(ctx context.Context, dir SortDirection, page, size int) (*Page, error) {
	page, size = normalizePaging(page, size)

	total, err := s.repo.CountPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	posts, err := s.repo.PostsPage(ctx, ParseSortDirection(string(dir)), page, size)
	if err != nil {
		return nil, fmt.Errorf("get posts page: %w", err)
	}

	return newPage(posts, page, size, total), nil
}

// SearchPosts pages through posts whose title, subtitle, body or country name contain the
// query, ignoring case. An empty query lists all posts, newest first.
func (s *Service) SearchPosts(ctx context.Context, query string, page, size int) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.SortPosts(ctx, SortDesc, page, size)
	}

	page, size = normalizePaging(page, size)
	posts, total, err := s.repo.Search(ctx, query, page, size)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}

	return newPage(posts, page, size, total), nil
}

func (s *Service) AddComment(ctx context.Context, identity *auth.Identity, postID int, text string) (*Comment, error) {
	if err := auth.Require(identity); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrCommentEmpty
	}

	comment := &Comment{
		Text:     text,
		AuthorID: identity.UserID,
		PostID:   postID,
	}
	if err := s.repo.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	return comment, nil
}

func (s *Service) CreatePost(ctx context.Context, identity *auth.Identity, input PostInput) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogService.createPost")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := auth.Require(identity); err != nil {
		return nil, err
	}

	input = trimInput(input)
	if input.Title == "" || input.Subtitle == "" || input.Body == "" {
		return nil, ErrPostFieldsEmpty
	}

	countryID, err := s.resolveCountry(ctx, input.CountryCode)
	if err != nil {
		return nil, err
	}

	post := &Post{
		Title:     input.Title,
		Subtitle:  input.Subtitle,
		Body:      input.Body,
		AuthorID:  identity.UserID,
		CountryID: countryID,
	}

	err = s.repo.InTx(ctx, func(repo postsRepo) error {
		if input.Image != nil {
			// uploads are keyed by file name only, so a failed insert leaves the file in place
			image, err := s.images.Save(ctx, input.Image)
			if err != nil {
				return fmt.Errorf("save image: %w", err)
			}
			post.Image = image
		}
		return repo.AddPost(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("post.id", post.ID))
	log.Debugf("user %d created post %d", identity.UserID, post.ID)

	return post, nil
}

// EditPost updates the post of the acting author. The existing image stays when no new one is given.
func (s *Service) EditPost(ctx context.Context, identity *auth.Identity, id int, input PostInput) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogService.editPost")
	span.SetAttributes(attribute.Int("post.id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := auth.Require(identity); err != nil {
		return nil, err
	}

	input = trimInput(input)
	if input.Title == "" || input.Subtitle == "" || input.Body == "" {
		return nil, ErrPostFieldsEmpty
	}

	countryID, err := s.resolveCountry(ctx, input.CountryCode)
	if err != nil {
		return nil, err
	}

	var post *Post
	var replacedImage string
	err = s.repo.InTx(ctx, func(repo postsRepo) error {
		var err error
		post, err = repo.LockPost(ctx, id)
		if err != nil {
			return err
		}
		if post.AuthorID != identity.UserID {
			return ErrForbidden
		}

		post.Title = input.Title
		post.Subtitle = input.Subtitle
		post.Body = input.Body
		post.CountryID = countryID
		oldImage := post.Image
		if input.Image != nil {
			image, err := s.images.Save(ctx, input.Image)
			if err != nil {
				return fmt.Errorf("save image: %w", err)
			}
			post.Image = image
		}

		if err := repo.UpdatePost(ctx, post); err != nil {
			return err
		}

		if oldImage != "" && oldImage != post.Image {
			if replacedImage, err = s.unusedImage(ctx, repo, oldImage); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.removeImage(ctx, replacedImage)

	log.Debugf("user %d edited post %d", identity.UserID, post.ID)
	return post, nil
}

// DeletePost removes the post of the acting author together with its comments.
func (s *Service) DeletePost(ctx context.Context, identity *auth.Identity, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogService.deletePost")
	span.SetAttributes(attribute.Int("post.id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := auth.Require(identity); err != nil {
		return err
	}

	var orphanedImage string
	err = s.repo.InTx(ctx, func(repo postsRepo) error {
		post, err := repo.LockPost(ctx, id)
		if err != nil {
			return err
		}
		if post.AuthorID != identity.UserID {
			return ErrForbidden
		}

		if err := repo.DeletePost(ctx, id); err != nil {
			return err
		}

		if post.Image != "" {
			if orphanedImage, err = s.unusedImage(ctx, repo, post.Image); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.removeImage(ctx, orphanedImage)

	log.Debugf("user %d deleted post %d", identity.UserID, id)
	return nil
}

// unusedImage returns the image name if no post references it anymore, otherwise "".
func (s *Service) unusedImage(ctx context.Context, repo postsRepo, image string) (string, error) {
	inUse, err := repo.ImageInUse(ctx, image)
	if err != nil {
		return "", fmt.Errorf("check image usage: %w", err)
	}
	if inUse {
		return "", nil
	}
	return image, nil
}

// removeImage deletes an image file after the transaction that dropped its last reference
// committed. Failures are only logged.
func (s *Service) removeImage(ctx context.Context, image string) {
	if image == "" {
		return
	}
	if err := s.images.Remove(ctx, image); err != nil && !errors.Is(err, uploads.ErrFileNotFound) {
		log.Warnf("remove unused image [%s]: %s", image, err)
	}
}

func (s *Service) resolveCountry(ctx context.Context, code string) (*int, error) {
	if code == "" {
		return nil, nil
	}
	country, err := s.countriesRepo.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &country.ID, nil
}

func trimInput(input PostInput) PostInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Subtitle = strings.TrimSpace(input.Subtitle)
	input.Body = strings.TrimSpace(input.Body)
	input.CountryCode = strings.ToUpper(strings.TrimSpace(input.CountryCode))
	return input
}

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	return page, size
}
