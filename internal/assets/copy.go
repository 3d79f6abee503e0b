// Package assets builds the static distribution directory from the client
// sources.
package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrSourceMissing is returned by Build when src does not exist.
var ErrSourceMissing = errors.New("source directory does not exist")

// Builder copies a source tree into a freshly cleaned destination.
type Builder struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewBuilder creates a Builder operating on fsys.
func NewBuilder(fsys afero.Fs, logger *slog.Logger) *Builder {
	return &Builder{fs: fsys, logger: logger.With("component", "build")}
}

// Build removes dst and recreates it as a copy of src. It returns the number
// of files copied.
func (b *Builder) Build(src, dst string) (int, error) {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return 0, fmt.Errorf("resolve src: %w", err)
	}
	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return 0, fmt.Errorf("resolve dst: %w", err)
	}
	if srcAbs == dstAbs || isWithin(srcAbs, dstAbs) {
		return 0, fmt.Errorf("dst %s must not contain src %s", dst, src)
	}
	if isWithin(dstAbs, srcAbs) {
		return 0, fmt.Errorf("dst %s must not be inside src %s", dst, src)
	}

	info, err := b.fs.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrSourceMissing, src)
	}
	if err != nil {
		return 0, fmt.Errorf("stat src: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("src %s is not a directory", src)
	}

	b.logger.Info("cleaning", "dir", dst)
	if err := b.fs.RemoveAll(dst); err != nil {
		return 0, fmt.Errorf("clean %s: %w", dst, err)
	}

	b.logger.Info("copying", "src", src, "dst", dst)
	n, err := b.copyDir(src, dst)
	if err != nil {
		return n, err
	}
	b.logger.Info("done", "files", n)
	return n, nil
}

func (b *Builder) copyDir(src, dst string) (int, error) {
	if err := b.fs.MkdirAll(dst, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", dst, err)
	}
	entries, err := afero.ReadDir(b.fs, src)
	if err != nil {
		return 0, fmt.Errorf("read dir %s: %w", src, err)
	}

	var n int
	for _, entry := range entries {
		s := filepath.Join(src, entry.Name())
		d := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			c, err := b.copyDir(s, d)
			n += c
			if err != nil {
				return n, err
			}
			continue
		}
		if !entry.Mode().IsRegular() {
			b.logger.Debug("skipping non-regular file", "path", s)
			continue
		}
		if err := b.copyFile(s, d, entry.Mode().Perm()); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (b *Builder) copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := b.fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := b.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}

// isWithin reports whether dir is below parent.
func isWithin(dir, parent string) bool {
	return strings.HasPrefix(dir, strings.TrimSuffix(parent, string(filepath.Separator))+string(filepath.Separator))
}
