package pkg

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var filenameStripRegex = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename returns a flat, ASCII only version of an uploaded file name that is
// safe to join to a storage directory. It can return an empty string, callers must
// handle that case.
func SecureFilename(filename string) string {
	decomposed := norm.NFKD.String(filename)

	var sb strings.Builder
	sb.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < 128 {
			sb.WriteRune(r)
		}
	}

	// no directory traversal
	flat := strings.NewReplacer("/", " ", "\\", " ").Replace(sb.String())
	joined := strings.Join(strings.Fields(flat), "_")
	return strings.Trim(filenameStripRegex.ReplaceAllString(joined, ""), "._")
}
