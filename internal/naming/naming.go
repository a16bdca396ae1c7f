// Package naming derives deterministic, filesystem-safe names from URLs.
// Deterministic names are what make re-running a download resumable: a file
// that already exists at its derived path is skipped without a request.
package naming

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var forbiddenChars = regexp.MustCompile(`[<>:"/\\|?*\x{200b}]`)

// Clean replaces characters that are forbidden in file and folder names.
func Clean(name string) string {
	return forbiddenChars.ReplaceAllString(name, "_")
}

func urlHash(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// StableDir builds a folder name from a human-readable label and a short hash
// of the URL. The same URL always yields the same name within and across runs.
func StableDir(rawURL, label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "download"
	}
	label = Clean(label)
	if len(label) > 50 {
		label = label[:50]
	}
	return Clean(label + "_" + urlHash(rawURL)[:8])
}

// HashedFileName names a file by the full hash of its URL plus the URL's
// extension. Used where server-side names collide across pages.
func HashedFileName(rawURL string) string {
	ext := Ext(rawURL)
	if ext == "" {
		ext = "jpg"
	}
	return urlHash(rawURL) + "." + ext
}

// FileNameFromURL returns the sanitized last path segment of the URL, or the
// hashed name when the URL has no usable basename.
func FileNameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return HashedFileName(rawURL)
	}
	base := path.Base(parsed.Path)
	if base == "" || base == "." || base == "/" {
		return HashedFileName(rawURL)
	}
	return Clean(base)
}

// Ext extracts the lowercase extension (without dot) from a URL's path.
func Ext(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(parsed.Path)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
