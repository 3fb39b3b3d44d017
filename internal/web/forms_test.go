package web

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFormRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestDecodeForm_Register(t *testing.T) {
	req := newFormRequest(url.Values{
		"name":     {"  Ann "},
		"email":    {" ann@x.com"},
		"password": {" pw123 "},
	})

	var form RegisterForm
	require.Nil(t, DecodeForm(req, &form))
	assert.Equal(t, "Ann", form.Name)
	assert.Equal(t, "ann@x.com", form.Email)
	// passwords are taken as typed
	assert.Equal(t, " pw123 ", form.Password)
}

func TestDecodeForm_ValidationErrors(t *testing.T) {
	req := newFormRequest(url.Values{
		"name":  {"   "},
		"email": {"not-an-email"},
	})

	var form RegisterForm
	errs := DecodeForm(req, &form)
	require.NotNil(t, errs)
	assert.Equal(t, "This field is required.", errs["name"])
	assert.Equal(t, "Invalid email address.", errs["email"])
	assert.Equal(t, "This field is required.", errs["password"])
	assert.Equal(t, "invalid form: email: Invalid email address.; name: This field is required.; password: This field is required.;", errs.Error())
}

func TestDecodeForm_Sort(t *testing.T) {
	var form SortForm
	assert.Nil(t, DecodeForm(newFormRequest(url.Values{"sort_type": {"asc"}}), &form))
	assert.Equal(t, "asc", form.SortType)

	form = SortForm{}
	errs := DecodeForm(newFormRequest(url.Values{"sort_type": {"sideways"}}), &form)
	assert.Equal(t, "Invalid choice.", errs["sort_type"])
}

func TestDecodeForm_PostTooLong(t *testing.T) {
	var form PostForm
	errs := DecodeForm(newFormRequest(url.Values{
		"title":    {strings.Repeat("a", 251)},
		"subtitle": {"sub"},
		"country":  {"JP"},
		"body":     {"<p>body</p>"},
	}), &form)
	assert.Equal(t, ValidationErrors{"title": "Must be at most 250 characters long."}, errs)
}

func TestDecodeForm_PostWithoutCountry(t *testing.T) {
	var form PostForm
	errs := DecodeForm(newFormRequest(url.Values{
		"title":    {"At sea"},
		"subtitle": {"Somewhere"},
		"country":  {""},
		"body":     {"<p>Waves</p>"},
	}), &form)
	assert.Nil(t, errs)
	assert.Empty(t, form.CountryCode)
}

func TestDecodeForm_NotAPointer(t *testing.T) {
	assert.Panics(t, func() {
		DecodeForm(newFormRequest(nil), LoginForm{})
	})
}

func newMultipartRequest(t *testing.T, fileField, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Kyoto Trip"))
	if fileName != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/new-post", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestFormImage(t *testing.T) {
	req := newMultipartRequest(t, "image", "kyoto.png", []byte("\x89PNG\r\n\x1a\n"))
	file, errs := FormImage(req, "image")
	require.Nil(t, errs)
	require.NotNil(t, file)
	defer file.Close()
	assert.Equal(t, "kyoto.png", file.Name)
	content, err := io.ReadAll(file.Content)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), content)
}

func TestFormImage_NoFile(t *testing.T) {
	file, errs := FormImage(newMultipartRequest(t, "image", "", nil), "image")
	assert.Nil(t, errs)
	assert.Nil(t, file)

	// empty file input
	file, errs = FormImage(newMultipartRequest(t, "image", "empty.png", nil), "image")
	assert.Nil(t, errs)
	assert.Nil(t, file)

	// url encoded form
	file, errs = FormImage(newFormRequest(url.Values{"title": {"x"}}), "image")
	assert.Nil(t, errs)
	assert.Nil(t, file)
}

func TestFormImage_NotAllowed(t *testing.T) {
	file, errs := FormImage(newMultipartRequest(t, "image", "evil.html", []byte("<script></script>")), "image")
	assert.Nil(t, file)
	assert.Equal(t, ValidationErrors{"image": "Images only!"}, errs)
}
