package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2beens/travelblog/internal/db"
	"github.com/2beens/travelblog/internal/telemetry/tracing"
	"github.com/2beens/travelblog/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// manual caching of prepared statements not needed:
// https://github.com/jackc/pgx/wiki/Automatic-Prepared-Statement-Caching

const postViewSelect = `
SELECT p.id, p.title, p.subtitle, p.body, p.image, p.created_at, p.author_id, p.country_id,
       u.name, u.email, COALESCE(c.code, ''), COALESCE(c.name, '')
FROM blog_posts p
    JOIN users u ON u.id = p.author_id
    LEFT JOIN countries c ON c.id = p.country_id`

const searchCondition = `
WHERE p.title ILIKE $1 OR p.subtitle ILIKE $1 OR p.body ILIKE $1 OR c.name ILIKE $1`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var _ postsRepo = (*Repo)(nil)

type Repo struct {
	pool *pgxpool.Pool
	db   db.DBTX
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{
		pool: pool,
		db:   pool,
	}
}

// InTx runs fn with a repo bound to one transaction. Nested calls join the outer transaction.
func (r *Repo) InTx(ctx context.Context, fn func(repo postsRepo) error) error {
	if _, inTx := r.db.(pgx.Tx); inTx {
		return fn(r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repo{pool: r.pool, db: tx})
	})
}

func (r *Repo) AddPost(ctx context.Context, post *Post) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.addPost")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if post.Title == "" || post.Subtitle == "" || post.Body == "" {
		return ErrPostFieldsEmpty
	}

	err = r.db.QueryRow(
		ctx,
		`INSERT INTO blog_posts (title, subtitle, body, image, author_id, country_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at;`,
		post.Title, post.Subtitle, post.Body, post.Image, post.AuthorID, post.CountryID,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrDuplicateTitle
		}
		return err
	}

	span.SetAttributes(attribute.Int("post.id", post.ID))
	return nil
}

// UpdatePost overwrites title, subtitle, body, image and country. Author and creation time never change.
func (r *Repo) UpdatePost(ctx context.Context, post *Post) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.updatePost")
	span.SetAttributes(attribute.Int("post.id", post.ID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if post.Title == "" || post.Subtitle == "" || post.Body == "" {
		return ErrPostFieldsEmpty
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE blog_posts
		SET title = $1, subtitle = $2, body = $3, image = $4, country_id = $5
		WHERE id = $6`,
		post.Title, post.Subtitle, post.Body, post.Image, post.CountryID, post.ID,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrDuplicateTitle
		}
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// DeletePost removes the post; its comments go with it (ON DELETE CASCADE).
func (r *Repo) DeletePost(ctx context.Context, id int) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.deletePost")
	span.SetAttributes(attribute.Int("post.id", id))
	defer span.End()

	tag, err := r.db.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *Repo) GetPost(ctx context.Context, id int) (*PostView, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.getPost")
	span.SetAttributes(attribute.Int("post.id", id))
	defer span.End()

	rows, err := r.db.Query(ctx, postViewSelect+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, err
	}

	posts, err := scanPostViews(rows)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrPostNotFound
	}
	return posts[0], nil
}

// LockPost loads the post and locks its row until the surrounding transaction ends.
func (r *Repo) LockPost(ctx context.Context, id int) (*Post, error) {
	var p Post
	err := r.db.QueryRow(
		ctx,
		`SELECT id, title, subtitle, body, image, created_at, author_id, country_id
		FROM blog_posts WHERE id = $1
		FOR UPDATE`,
		id,
	).Scan(&p.ID, &p.Title, &p.Subtitle, &p.Body, &p.Image, &p.CreatedAt, &p.AuthorID, &p.CountryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ImageInUse reports whether any post references the stored image name.
func (r *Repo) ImageInUse(ctx context.Context, image string) (bool, error) {
	var inUse bool
	err := r.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM blog_posts WHERE image = $1)`,
		image,
	).Scan(&inUse)
	return inUse, err
}

// Recent returns the newest posts first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]*PostView, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.recent")
	span.SetAttributes(attribute.Int("limit", limit))
	defer span.End()

	rows, err := r.db.Query(
		ctx,
		postViewSelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return scanPostViews(rows)
}

// PostsPage returns one page of all posts, ordered by creation time. Pages start from 1.
func (r *Repo) PostsPage(ctx context.Context, dir SortDirection, page, size int) ([]*PostView, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.postsPage")
	span.SetAttributes(attribute.Int("page", page))
	span.SetAttributes(attribute.Int("size", size))
	defer span.End()

	if page < 1 || size < 1 {
		return nil, fmt.Errorf("invalid page [%d] or size [%d]", page, size)
	}

	// dir is one of two constants, never user text
	order := "DESC"
	if dir == SortAsc {
		order = "ASC"
	}

	rows, err := r.db.Query(
		ctx,
		postViewSelect+fmt.Sprintf(` ORDER BY p.created_at %s, p.id %s LIMIT $1 OFFSET $2`, order, order),
		size, (page-1)*size,
	)
	if err != nil {
		return nil, err
	}
	return scanPostViews(rows)
}

// Search matches the query case-insensitively against title, subtitle, body and country name.
// Returns the requested page, newest first, and the total number of matches.
func (r *Repo) Search(ctx context.Context, query string, page, size int) (_ []*PostView, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.search")
	span.SetAttributes(attribute.String("query", query))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if page < 1 || size < 1 {
		return nil, 0, fmt.Errorf("invalid page [%d] or size [%d]", page, size)
	}

	pattern := "%" + likeEscaper.Replace(query) + "%"

	err = r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM blog_posts p LEFT JOIN countries c ON c.id = p.country_id`+searchCondition,
		pattern,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	rows, err := r.db.Query(
		ctx,
		postViewSelect+searchCondition+` ORDER BY p.created_at DESC, p.id DESC LIMIT $2 OFFSET $3`,
		pattern, size, (page-1)*size,
	)
	if err != nil {
		return nil, 0, err
	}

	posts, err := scanPostViews(rows)
	if err != nil {
		return nil, 0, err
	}

	span.SetAttributes(attribute.Int("total", total))
	return posts, total, nil
}

func (r *Repo) CountPosts(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM blog_posts`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repo) AddComment(ctx context.Context, comment *Comment) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.addComment")
	span.SetAttributes(attribute.Int("post.id", comment.PostID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if comment.Text == "" {
		return ErrCommentEmpty
	}

	err = r.db.QueryRow(
		ctx,
		`INSERT INTO comments (text, author_id, post_id) VALUES ($1, $2, $3) RETURNING id, created_at;`,
		comment.Text, comment.AuthorID, comment.PostID,
	).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		if pkg.IsForeignKeyViolationError(err) && pkg.ConstraintName(err) == "comments_post_id_fkey" {
			return ErrPostNotFound
		}
		return err
	}

	log.Tracef("comment %d added to post %d", comment.ID, comment.PostID)
	return nil
}

// Comments returns the comments of a post, newest first.
func (r *Repo) Comments(ctx context.Context, postID int) ([]*CommentView, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.comments")
	span.SetAttributes(attribute.Int("post.id", postID))
	defer span.End()

	rows, err := r.db.Query(
		ctx,
		`SELECT cm.id, cm.text, cm.created_at, cm.author_id, cm.post_id, u.name, u.email
		FROM comments cm
		    JOIN users u ON u.id = cm.author_id
		WHERE cm.post_id = $1
		ORDER BY cm.created_at DESC, cm.id DESC`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*CommentView
	for rows.Next() {
		var c CommentView
		if err := rows.Scan(&c.ID, &c.Text, &c.CreatedAt, &c.AuthorID, &c.PostID, &c.AuthorName, &c.AuthorEmail); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}

	return comments, rows.Err()
}

func scanPostViews(rows pgx.Rows) ([]*PostView, error) {
	defer rows.Close()

	var posts []*PostView
	for rows.Next() {
		var p PostView
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Subtitle, &p.Body, &p.Image, &p.CreatedAt, &p.AuthorID, &p.CountryID,
			&p.AuthorName, &p.AuthorEmail, &p.CountryCode, &p.CountryName,
		); err != nil {
			return nil, err
		}
		posts = append(posts, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}
