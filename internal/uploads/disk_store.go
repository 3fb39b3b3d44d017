package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/2beens/travelblog/internal/telemetry/tracing"
	"github.com/2beens/travelblog/pkg"

	"github.com/gabriel-vasile/mimetype"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// mimetype needs at most this many leading bytes to detect the supported image types
const sniffLen = 3072

var (
	ErrInvalidFileName = errors.New("invalid file name")
	ErrNotAnImage      = errors.New("file is not a supported image")
	ErrFileNotFound    = errors.New("file not found")
)

var allowedImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"svg":  {},
}

var allowedImageMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/svg+xml",
}

// File is an uploaded file, not yet stored.
type File struct {
	Name    string
	Content io.Reader
}

// Close closes the content, if it can be closed.
func (f *File) Close() error {
	if f == nil {
		return nil
	}
	if closer, ok := f.Content.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// AllowedImageExtension reports whether the file name ends with one of the accepted
// image extensions (jpg, jpeg, png, svg), case-insensitive.
func AllowedImageExtension(filename string) bool {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	_, ok := allowedImageExtensions[strings.ToLower(ext)]
	return ok
}

// DiskStore keeps uploaded post images flat in one directory, keyed by the sanitized
// file name. Saving a file with an existing name replaces it.
type DiskStore struct {
	rootPath string
}

func NewDiskStore(rootPath string) (*DiskStore, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &DiskStore{
		rootPath: rootPath,
	}, nil
}

// Save stores the image and returns the name it is stored under.
func (ds *DiskStore) Save(ctx context.Context, file *File) (_ string, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if file == nil || file.Content == nil {
		return "", errors.New("no file content")
	}

	name := pkg.SecureFilename(file.Name)
	if name == "" || !AllowedImageExtension(name) {
		return "", ErrInvalidFileName
	}
	span.SetAttributes(attribute.String("file.name", name))

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read file: %w", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !isAllowedMimeType(detected) {
		log.Debugf("disk store: rejecting [%s], detected type: %s", name, detected.String())
		return "", ErrNotAnImage
	}

	// write to a temp file first, so readers never see a partially written image
	tmp, err := os.CreateTemp(ds.rootPath, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			if removeErr := os.Remove(tmp.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.Errorf("disk store: remove temp file: %s", removeErr)
			}
		}
	}()

	size, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(head), file.Content))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod file: %w", err)
	}
	if err = os.Rename(tmp.Name(), filepath.Join(ds.rootPath, name)); err != nil {
		return "", fmt.Errorf("rename file: %w", err)
	}

	span.SetAttributes(attribute.Int64("file.size", size))
	log.Debugf("disk store: saved [%s], %d bytes", name, size)

	return name, nil
}

func (ds *DiskStore) Remove(ctx context.Context, name string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.remove")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	filePath, err := ds.Path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return err
	}

	log.Debugf("disk store: removed [%s]", name)
	return nil
}

// Path returns the location of a stored file. Names that do not come from Save are rejected.
func (ds *DiskStore) Path(name string) (string, error) {
	if name == "" || name != pkg.SecureFilename(name) {
		return "", ErrInvalidFileName
	}
	return filepath.Join(ds.rootPath, name), nil
}

// Handler serves stored files read-only, without directory listings.
func (ds *DiskStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		filePath, err := ds.Path(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		exists, err := pkg.PathExists(filePath, false)
		if err != nil || !exists {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		// svg images can carry scripts
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
		http.ServeFile(w, r, filePath)
	})
}

func isAllowedMimeType(detected *mimetype.MIME) bool {
	for _, m := range allowedImageMimeTypes {
		if detected.Is(m) {
			return true
		}
	}
	return false
}
