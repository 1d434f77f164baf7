package media

import (
	"mime"
	"strings"
)

// BaseType strips parameters (codecs, rate...) from a MIME type and
// lowercases it. Unparseable input is returned trimmed and lowercased.
func BaseType(mimeType string) string {
	t, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return t
}
