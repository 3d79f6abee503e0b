// Package static resolves URL paths to files under the static root and
// serves them.
package static

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned for any path that does not resolve to a regular file.
var ErrNotFound = errors.New("static asset not found")

// defaultContentType is used for extensions missing from contentTypes.
const defaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// Asset is a resolved static file.
type Asset struct {
	Name        string // slash-separated path relative to the root
	ContentType string
	Size        int64
}

// Resolver maps URL paths onto a filesystem rooted at the static directory.
type Resolver struct {
	fs afero.Fs
}

// NewResolver creates a Resolver for the OS directory root. Paths can never
// leave root.
func NewResolver(root string) *Resolver {
	return NewResolverFs(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewResolverFs creates a Resolver over an arbitrary filesystem whose root is
// the static root.
func NewResolverFs(fs afero.Fs) *Resolver {
	return &Resolver{fs: fs}
}

// Resolve maps a URL-decoded path to an Asset. A path ending in "/" gets
// index.html appended; a path without an extension gets "/index.html"
// appended. Paths with a segment starting with "." (including "..") are
// rejected.
func (r *Resolver) Resolve(urlPath string) (*Asset, error) {
	name, ok := normalize(urlPath)
	if !ok {
		return nil, ErrNotFound
	}

	// Stat follows symlinks, so a link to a directory is rejected here too.
	info, err := r.fs.Stat(name)
	if err != nil || !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}

	return &Asset{
		Name:        name,
		ContentType: ContentType(name),
		Size:        info.Size(),
	}, nil
}

// Open opens a previously resolved asset for streaming.
func (r *Resolver) Open(a *Asset) (afero.File, error) {
	f, err := r.fs.Open(a.Name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.Name, err)
	}
	return f, nil
}

// ContentType returns the MIME type for name's extension.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return defaultContentType
}

func normalize(urlPath string) (string, bool) {
	for _, seg := range strings.Split(urlPath, "/") {
		// Covers ".." and hidden files such as .env or .git.
		if seg != "." && strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	if strings.ContainsRune(urlPath, '\x00') || strings.Contains(urlPath, "\\") {
		return "", false
	}

	name := path.Join("/", urlPath)
	if strings.HasSuffix(urlPath, "/") {
		name = path.Join(name, "index.html")
	}
	if extension(name) == "" {
		name = path.Join(name, "index.html")
	}
	return name, true
}

// extension is path.Ext applied to the base name with leading dots removed,
// so "/.env" has no extension.
func extension(name string) string {
	return path.Ext(strings.TrimLeft(path.Base(name), "."))
}
