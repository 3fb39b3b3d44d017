//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

var (
	csrfFieldRe  = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)
	deleteLinkRe = regexp.MustCompile(`href="(/delete/\d+\?csrf_token=[^"]+)"`)
)

type blogClient struct {
	http *http.Client
}

func newBlogClient(s *IntegrationTestSuite) *blogClient {
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	return &blogClient{
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *blogClient) get(path string) (*http.Response, string, error) {
	resp, err := c.http.Get(serverEndpoint + path)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp, string(body), err
}

// csrfToken reads the form token the explore page hands to this client's cookie jar.
func (c *blogClient) csrfToken() (string, error) {
	_, body, err := c.get("/explore")
	if err != nil {
		return "", err
	}
	m := csrfFieldRe.FindStringSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("no csrf token on explore page")
	}
	return html.UnescapeString(m[1]), nil
}

// deleteLink returns the delete href from a post page, token included.
func (c *blogClient) deleteLink(postPath string) (string, error) {
	_, body, err := c.get(postPath)
	if err != nil {
		return "", err
	}
	m := deleteLinkRe.FindStringSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("no delete link on %s", postPath)
	}
	return html.UnescapeString(m[1]), nil
}

func (c *blogClient) postForm(path string, values url.Values) (*http.Response, error) {
	token, err := c.csrfToken()
	if err != nil {
		return nil, err
	}
	values.Set("csrf_token", token)

	resp, err := c.http.PostForm(serverEndpoint+path, values)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	return resp, nil
}

func (c *blogClient) postMultipart(path string, fields map[string]string, imageName string, imageContent []byte) (*http.Response, error) {
	token, err := c.csrfToken()
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("csrf_token", token); err != nil {
		return nil, err
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if imageName != "" {
		part, err := writer.CreateFormFile("image", imageName)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(imageContent); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	resp, err := c.http.Post(serverEndpoint+path, writer.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	return resp, nil
}

func (c *blogClient) register(name, email, password string) (*http.Response, error) {
	return c.postForm("/register", url.Values{
		"name":     {name},
		"email":    {email},
		"password": {password},
	})
}

func testPNG(s *IntegrationTestSuite) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	buf := &bytes.Buffer{}
	s.Require().NoError(png.Encode(buf, img))
	return buf.Bytes()
}

func (s *IntegrationTestSuite) TestRegisterLoginLogout() {
	client := newBlogClient(s)
	email := strings.ToLower(gofakeit.Email())
	password := gofakeit.Password(true, true, true, false, false, 14)

	resp, err := client.register(gofakeit.Name(), email, password)
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	var storedHash string
	err = s.DB.QueryRow(`SELECT password FROM users WHERE email = $1`, email).Scan(&storedHash)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(storedHash, "pbkdf2:sha256:"))
	s.NotContains(storedHash, password)

	resp, _, err = client.get("/new-post")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)

	// second registration with the same email goes to the login page
	other := newBlogClient(s)
	resp, err = other.register(gofakeit.Name(), email, "whatever123")
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))

	resp, err = other.postForm("/login", url.Values{"email": {email}, "password": {"wrong"}})
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))

	resp, err = other.postForm("/login", url.Values{"email": {email}, "password": {password}})
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	resp, _, err = client.get("/logout")
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)

	resp, _, err = client.get("/new-post")
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))

	// the other session is still alive
	resp, _, err = other.get("/new-post")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestPostLifecycle() {
	ctx := context.Background()

	author := newBlogClient(s)
	resp, err := author.register(gofakeit.Name(), strings.ToLower(gofakeit.Email()), "author-pass-123")
	s.Require().NoError(err)
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)

	title := fmt.Sprintf("Lisbon trams %s", gofakeit.UUID())
	resp, err = author.postMultipart("/new-post", map[string]string{
		"title":    title,
		"subtitle": "Riding the 28",
		"country":  "PT",
		"body":     "Yellow trams everywhere, up and down the hills.",
	}, "tram.png", testPNG(s))
	s.Require().NoError(err)
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	var (
		postID      int
		imageName   string
		countryCode string
	)
	err = s.DB.QueryRowContext(ctx, `
		SELECT p.id, p.image, c.code
		FROM blog_posts p JOIN countries c ON c.id = p.country_id
		WHERE p.title = $1`, title,
	).Scan(&postID, &imageName, &countryCode)
	s.Require().NoError(err)
	s.Equal("PT", countryCode)
	s.Require().NotEmpty(imageName)

	resp, imageBody, err := author.get("/static/uploads/" + imageName)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))
	s.Equal(testPNG(s), []byte(imageBody))

	// duplicate title is rejected with the form re-rendered
	resp, err = author.postMultipart("/new-post", map[string]string{
		"title":    title,
		"subtitle": "again",
		"country":  "PT",
		"body":     "again",
	}, "", nil)
	s.Require().NoError(err)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	postPath := fmt.Sprintf("/post/%d", postID)
	resp, page, err := author.get(postPath)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(page, "Riding the 28")

	reader := newBlogClient(s)

	// anonymous comments go to the login page
	resp, err = reader.postForm(postPath, url.Values{"comment_text": {"nice"}})
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))

	resp, err = reader.register(gofakeit.Name(), strings.ToLower(gofakeit.Email()), "reader-pass-123")
	s.Require().NoError(err)
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)

	commentText := "Great photos " + gofakeit.Word()
	resp, err = reader.postForm(postPath, url.Values{"comment_text": {commentText}})
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal(postPath, resp.Header.Get("Location"))

	resp, page, err = reader.get(postPath)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(page, commentText)

	resp, page, err = reader.get("/explore?q=" + url.QueryEscape("lisbon TRAMS"))
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(page, title)

	// only the author may edit or delete
	resp, _, err = reader.get(fmt.Sprintf("/edit-post/%d", postID))
	s.Require().NoError(err)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	readerToken, err := reader.csrfToken()
	s.Require().NoError(err)
	resp, _, err = reader.get(fmt.Sprintf("/delete/%d?csrf_token=%s", postID, url.QueryEscape(readerToken)))
	s.Require().NoError(err)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp, err = author.postMultipart(fmt.Sprintf("/edit-post/%d", postID), map[string]string{
		"title":    title,
		"subtitle": "Riding the 28 and the 15",
		"country":  "PT",
		"body":     "Updated body.",
	}, "", nil)
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal(postPath, resp.Header.Get("Location"))

	var subtitle, imageAfterEdit string
	err = s.DB.QueryRowContext(ctx, `SELECT subtitle, image FROM blog_posts WHERE id = $1`, postID).
		Scan(&subtitle, &imageAfterEdit)
	s.Require().NoError(err)
	s.Equal("Riding the 28 and the 15", subtitle)
	s.Equal(imageName, imageAfterEdit)

	var count int

	// a bare delete link without the form token does nothing
	resp, _, err = author.get(fmt.Sprintf("/delete/%d", postID))
	s.Require().NoError(err)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Require().NoError(s.DB.QueryRowContext(ctx, `SELECT count(*) FROM blog_posts WHERE id = $1`, postID).Scan(&count))
	s.Equal(1, count)

	deletePath, err := author.deleteLink(postPath)
	s.Require().NoError(err)
	resp, _, err = author.get(deletePath)
	s.Require().NoError(err)
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	s.Require().NoError(s.DB.QueryRowContext(ctx, `SELECT count(*) FROM blog_posts WHERE id = $1`, postID).Scan(&count))
	s.Zero(count)
	s.Require().NoError(s.DB.QueryRowContext(ctx, `SELECT count(*) FROM comments WHERE post_id = $1`, postID).Scan(&count))
	s.Zero(count)

	resp, _, err = author.get("/static/uploads/" + imageName)
	s.Require().NoError(err)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _, err = author.get(postPath)
	s.Require().NoError(err)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, page, err = reader.get("/")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.NotContains(page, title)
	s.NotContains(page, `href="`+postPath+`"`)

	// the search box echoes the query, so check the listing itself
	resp, page, err = reader.get("/explore?q=" + url.QueryEscape(title))
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.NotContains(page, `href="`+postPath+`"`)
	s.Contains(page, "No posts found.")
}

func (s *IntegrationTestSuite) TestHealthAndVersion() {
	client := newBlogClient(s)

	resp, body, err := client.get("/health")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("I'm OK, thanks ;)", body)

	resp, body, err = client.get("/version")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	require.Contains(s.T(), body, "test-version-info")
}
