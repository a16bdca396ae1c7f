// Package links classifies discovered URLs: media type for filter decisions,
// external host recognition for cross-host dispatch, and rewriting of rotated
// legacy domains to their current canonical domain.
package links

import (
	"net/url"
	"strings"
)

type MediaKind int

const (
	KindOther MediaKind = iota
	KindImage
	KindVideo
	KindArchive
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindArchive:
		return "archive"
	default:
		return "other"
	}
}

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "avif": true, "bmp": true,
}

var videoExts = map[string]bool{
	"mp4": true, "webm": true, "mov": true, "avi": true, "m4v": true, "mkv": true, "ts": true,
}

var archiveExts = map[string]bool{
	"zip": true, "rar": true, "7z": true, "tar": true, "gz": true,
}

// ClassifyExt maps a lowercase extension (no dot) to a media kind.
func ClassifyExt(ext string) MediaKind {
	switch {
	case imageExts[ext]:
		return KindImage
	case videoExts[ext]:
		return KindVideo
	case archiveExts[ext]:
		return KindArchive
	default:
		return KindOther
	}
}

// Filters are the user's content-type switches. Assets excluded by filter are
// neither counted nor downloaded.
type Filters struct {
	Images   bool
	Videos   bool
	Archives bool
}

// Allow reports whether a media kind passes the active filters. Unclassified
// assets ride with the image switch, matching how attachments without a known
// extension are treated as pictures.
func (f Filters) Allow(k MediaKind) bool {
	switch k {
	case KindImage, KindOther:
		return f.Images
	case KindVideo:
		return f.Videos
	case KindArchive:
		return f.Archives
	}
	return false
}

// ExternalHost identifies a known file host that pages on other sites link to.
type ExternalHost int

const (
	ExternalNone ExternalHost = iota
	ExternalBunkr
	ExternalGofile
	ExternalPixeldrain
)

func (h ExternalHost) String() string {
	switch h {
	case ExternalBunkr:
		return "bunkr"
	case ExternalGofile:
		return "gofile"
	case ExternalPixeldrain:
		return "pixeldrain"
	default:
		return "none"
	}
}

// DetectExternal recognizes links to known external file hosts by substring
// match on the URL, the way forum posts embed them.
func DetectExternal(rawURL string) (ExternalHost, bool) {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "bunkr"):
		return ExternalBunkr, true
	case strings.Contains(lower, "gofile"):
		return ExternalGofile, true
	case strings.Contains(lower, "pixeldrain"):
		return ExternalPixeldrain, true
	}
	return ExternalNone, false
}

// Domains bunkr has abandoned over the years. Links on old forum posts still
// point at them; they must be rewritten before crawling.
var legacyBunkrDomains = map[string]bool{
	"bunkr.ax": true, "bunkr.cat": true, "bunkr.ru": true, "bunkrr.ru": true,
	"bunkr.su": true, "bunkrr.su": true, "bunkr.la": true, "bunkr.is": true,
	"bunkr.to": true,
}

const canonicalBunkrDomain = "bunkr.ac"

// CanonicalBunkrURL rewrites a legacy bunkr domain to the current one. URLs
// already on a live domain pass through unchanged.
func CanonicalBunkrURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if legacyBunkrDomains[strings.ToLower(parsed.Host)] {
		parsed.Host = canonicalBunkrDomain
		return parsed.String()
	}
	return rawURL
}

// Media is a candidate downloadable asset discovered on a page.
type Media struct {
	URL  string
	Kind MediaKind
}

// External is a link to a different host family, to be handed to that
// family's driver rather than fetched directly.
type External struct {
	Host ExternalHost
	URL  string
}

// Result is the outcome of running discovery over one fetched page.
type Result struct {
	Media    []Media
	NextPage string
	External []External
}
