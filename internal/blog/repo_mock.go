package blog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2beens/travelblog/internal/countries"
)

var _ postsRepo = (*repoMock)(nil)

type mockUser struct {
	Name  string
	Email string
}

// repoMock keeps posts in memory. InTx restores the previous state when fn fails.
type repoMock struct {
	Posts        map[int]*Post
	CommentsByID map[int]*Comment
	Users        map[int]mockUser
	Countries    map[int]*countries.Country
	nextID       int
	now          time.Time
	mutex        sync.Mutex
}

func newRepoMock() *repoMock {
	return &repoMock{
		Posts:        make(map[int]*Post),
		CommentsByID: make(map[int]*Comment),
		Users:        make(map[int]mockUser),
		Countries:    make(map[int]*countries.Country),
		now:          time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick gives every new row a distinct, increasing creation time
func (r *repoMock) tick() (int, time.Time) {
	r.nextID++
	r.now = r.now.Add(time.Minute)
	return r.nextID, r.now
}

func (r *repoMock) InTx(_ context.Context, fn func(repo postsRepo) error) error {
	r.mutex.Lock()
	posts := make(map[int]Post, len(r.Posts))
	for id, p := range r.Posts {
		posts[id] = *p
	}
	comments := make(map[int]*Comment, len(r.CommentsByID))
	for id, c := range r.CommentsByID {
		comments[id] = c
	}
	r.mutex.Unlock()

	if err := fn(r); err != nil {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.Posts = make(map[int]*Post, len(posts))
		for id, p := range posts {
			restored := p
			r.Posts[id] = &restored
		}
		r.CommentsByID = comments
		return err
	}
	return nil
}

func (r *repoMock) AddPost(_ context.Context, post *Post) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if post.Title == "" || post.Subtitle == "" || post.Body == "" {
		return ErrPostFieldsEmpty
	}
	for _, p := range r.Posts {
		if p.Title == post.Title {
			return ErrDuplicateTitle
		}
	}

	post.ID, post.CreatedAt = r.tick()
	stored := *post
	r.Posts[post.ID] = &stored
	return nil
}

func (r *repoMock) UpdatePost(_ context.Context, post *Post) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored, ok := r.Posts[post.ID]
	if !ok {
		return ErrPostNotFound
	}
	for _, p := range r.Posts {
		if p.ID != post.ID && p.Title == post.Title {
			return ErrDuplicateTitle
		}
	}

	stored.Title = post.Title
	stored.Subtitle = post.Subtitle
	stored.Body = post.Body
	stored.Image = post.Image
	stored.CountryID = post.CountryID
	return nil
}

func (r *repoMock) DeletePost(_ context.Context, id int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.Posts, id)
	for cid, c := range r.CommentsByID {
		if c.PostID == id {
			delete(r.CommentsByID, cid)
		}
	}
	return nil
}

func (r *repoMock) GetPost(_ context.Context, id int) (*PostView, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, ok := r.Posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return r.view(p), nil
}

func (r *repoMock) LockPost(_ context.Context, id int) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, ok := r.Posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	locked := *p
	return &locked, nil
}

func (r *repoMock) ImageInUse(_ context.Context, image string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, p := range r.Posts {
		if p.Image == image {
			return true, nil
		}
	}
	return false, nil
}

func (r *repoMock) Recent(_ context.Context, limit int) ([]*PostView, error) {
	posts := r.sorted(SortDesc, func(*PostView) bool { return true })
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (r *repoMock) PostsPage(_ context.Context, dir SortDirection, page, size int) ([]*PostView, error) {
	return paginate(r.sorted(dir, func(*PostView) bool { return true }), page, size), nil
}

func (r *repoMock) Search(_ context.Context, query string, page, size int) ([]*PostView, int, error) {
	query = strings.ToLower(query)
	matches := r.sorted(SortDesc, func(p *PostView) bool {
		for _, field := range []string{p.Title, p.Subtitle, p.Body, p.CountryName} {
			if strings.Contains(strings.ToLower(field), query) {
				return true
			}
		}
		return false
	})
	return paginate(matches, page, size), len(matches), nil
}

func (r *repoMock) CountPosts(_ context.Context) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.Posts), nil
}

func (r *repoMock) AddComment(_ context.Context, comment *Comment) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if comment.Text == "" {
		return ErrCommentEmpty
	}
	if _, ok := r.Posts[comment.PostID]; !ok {
		return ErrPostNotFound
	}

	comment.ID, comment.CreatedAt = r.tick()
	stored := *comment
	r.CommentsByID[comment.ID] = &stored
	return nil
}

func (r *repoMock) Comments(_ context.Context, postID int) ([]*CommentView, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var comments []*CommentView
	for _, c := range r.CommentsByID {
		if c.PostID != postID {
			continue
		}
		author := r.Users[c.AuthorID]
		comments = append(comments, &CommentView{
			Comment:     *c,
			AuthorName:  author.Name,
			AuthorEmail: author.Email,
		})
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

func (r *repoMock) view(p *Post) *PostView {
	author := r.Users[p.AuthorID]
	v := &PostView{
		Post:        *p,
		AuthorName:  author.Name,
		AuthorEmail: author.Email,
	}
	if p.CountryID != nil {
		if c, ok := r.Countries[*p.CountryID]; ok {
			v.CountryCode = c.Code
			v.CountryName = c.Name
		}
	}
	return v
}

func (r *repoMock) sorted(dir SortDirection, filter func(*PostView) bool) []*PostView {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var posts []*PostView
	for _, p := range r.Posts {
		if v := r.view(p); filter(v) {
			posts = append(posts, v)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if dir == SortAsc {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

func paginate(posts []*PostView, page, size int) []*PostView {
	start := (page - 1) * size
	if start >= len(posts) {
		return nil
	}
	end := start + size
	if end > len(posts) {
		end = len(posts)
	}
	return posts[start:end]
}

var _ countriesRepo = (*countriesRepoMock)(nil)

type countriesRepoMock struct {
	repo *repoMock
}

func (c *countriesRepoMock) All(_ context.Context) ([]*countries.Country, error) {
	c.repo.mutex.Lock()
	defer c.repo.mutex.Unlock()

	var all []*countries.Country
	for _, country := range c.repo.Countries {
		all = append(all, country)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	return all, nil
}

func (c *countriesRepoMock) ByCode(_ context.Context, code string) (*countries.Country, error) {
	c.repo.mutex.Lock()
	defer c.repo.mutex.Unlock()

	for _, country := range c.repo.Countries {
		if country.Code == code {
			return country, nil
		}
	}
	return nil, countries.ErrCountryNotFound
}
