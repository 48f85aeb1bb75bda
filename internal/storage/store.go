package storage

import (
	"context"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFilenameBytes bounds sanitized names so keys and public URLs stay short.
const maxFilenameBytes = 120

// ObjectStore is where uploaded report PDFs live.
type ObjectStore interface {
	Write(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ ObjectStore = (*FileStore)(nil)
	_ ObjectStore = (*SupabaseStore)(nil)
)

// SanitizeFilename keeps the base name of an uploaded file and replaces
// characters that are unsafe in object keys or URLs.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return "upload"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "upload"
	}
	if len(out) > maxFilenameBytes {
		ext := path.Ext(out)
		if len(ext) > 10 {
			ext = ""
		}
		stem := strings.TrimSuffix(out, ext)
		for len(stem) > maxFilenameBytes-len(ext) {
			_, size := utf8.DecodeLastRuneInString(stem)
			stem = stem[:len(stem)-size]
		}
		out = stem + ext
	}
	return out
}
