package artifact

import (
	"net/url"
	"path"
	"strings"
)

// Kind classifies an artifact for thumbnailing.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindOther Kind = "other"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true,
	".m4v": true, ".mpeg": true, ".mpg": true,
}

// DetectKind classifies by the URL's extension first and falls back to the
// mime type reported by the host.
func DetectKind(rawURL, mimeType string) Kind {
	ext := strings.ToLower(path.Ext(fileName(rawURL)))
	switch {
	case imageExts[ext]:
		return KindImage
	case videoExts[ext]:
		return KindVideo
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mimeType, "image/") && mimeType != "image/svg+xml":
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	}
	return KindOther
}

// fileName is the last path segment of rawURL without its query string.
func fileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	name := rawURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name, _, _ = strings.Cut(name, "?")
	return name
}

// thumbName derives "<name>_thumb.jpg" from the original file name.
func thumbName(original string) string {
	base := strings.TrimSuffix(original, path.Ext(original))
	if base == "" {
		base = "file"
	}
	return base + "_thumb.jpg"
}
