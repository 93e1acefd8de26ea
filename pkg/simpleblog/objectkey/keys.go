// Package objectkey derives blob store keys for blog objects.
//
// Keys are a pure function of the blog ID and a fixed slot name, never of the
// title or any other mutable field, so renaming a blog never requires blob
// relocation. No two blogs share a key prefix.
package objectkey

import (
	"fmt"
	"strings"
)

// Slot names under a blog's prefix.
const (
	contentSlot = "content.html"
	coverSlot   = "cover"
)

// coverExtensions maps declared cover content types to their key extension.
var coverExtensions = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// Prefix returns the key prefix owned by a blog, e.g. "blogs/7/".
func Prefix(blogID int64) string {
	return fmt.Sprintf("blogs/%d/", blogID)
}

// ContentKey returns the canonical content key, e.g. "blogs/7/content.html".
func ContentKey(blogID int64) string {
	return Prefix(blogID) + contentSlot
}

// CoverKey returns the cover key for the declared content type, e.g.
// "blogs/7/cover.png". The extension is fixed at upload time and only changes
// when the cover is replaced.
func CoverKey(blogID int64, contentType string) (string, error) {
	ext, ok := coverExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("unsupported cover content type %q", contentType)
	}
	return fmt.Sprintf("%s%s.%s", Prefix(blogID), coverSlot, ext), nil
}

// SupportedCoverType reports whether a declared cover content type has a
// key extension.
func SupportedCoverType(contentType string) bool {
	_, ok := coverExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	return ok
}
