package pkg

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteResponse(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		message     string
		status      int
	}{
		{"html page", ContentType.HTML, "<h1>Lisbon in Spring</h1>", http.StatusOK},
		{"not found page", ContentType.HTML, "<h1>Not Found</h1>", http.StatusNotFound},
		{"render failure", ContentType.Text, "internal error", http.StatusInternalServerError},
		{"health", ContentType.Text, "unhealthy: postgres", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteResponse(rr, tt.contentType, tt.message, tt.status)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.contentType, rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.message, rr.Body.String())
		})
	}
}

func TestWriteResponseBytes_KeepsPresetContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("Content-Type", "image/png")
	rr.Header().Set("X-Content-Type-Options", "nosniff")

	WriteResponseBytes(rr, "", []byte("\x89PNG"), http.StatusOK)

	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "\x89PNG", rr.Body.String())
}

func TestWriteResponseBytes_ReplacesContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("Content-Type", ContentType.Text)

	WriteResponseBytes(rr, ContentType.HTML, []byte("<p>ok</p>"), http.StatusBadRequest)

	assert.Equal(t, []string{ContentType.HTML}, rr.Header().Values("Content-Type"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (w failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("client gone")
}

func TestWriteResponseBytes_WriteFailure(t *testing.T) {
	w := failingWriter{ResponseRecorder: httptest.NewRecorder()}

	assert.NotPanics(t, func() {
		WriteResponseBytes(w, ContentType.HTML, []byte("<p>bye</p>"), http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteTextResponseOK(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteTextResponseOK(rr, "I'm OK, thanks ;)")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ContentType.Text, rr.Header().Get("Content-Type"))
	assert.Equal(t, "I'm OK, thanks ;)", rr.Body.String())
}
