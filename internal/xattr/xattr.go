// Package xattr marks files as ignored for the Dropbox client by setting the
// extended attribute it reads.
package xattr

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
)

// ErrUnsupported is returned when the platform or filesystem has no
// extended attributes.
var ErrUnsupported = errors.New("extended attributes not supported")

// attrValue is written to mark a path as ignored.
var attrValue = []byte("1")

// Flagger sets or clears the ignore attribute on paths.
type Flagger struct{}

// New creates a Flagger.
func New() *Flagger {
	return &Flagger{}
}

// ApplyIgnoredFlag sets the ignore attribute when ignored is true and removes
// it otherwise. Paths that no longer exist and symlinks are left alone.
func (f *Flagger) ApplyIgnoredFlag(path string, ignored bool) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return syerrors.AttributeError(path, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		slog.Debug("not flagging symlink", slog.String("path", path))
		return nil
	}

	if ignored {
		err = setAttr(path)
	} else {
		err = removeAttr(path)
	}
	if err != nil {
		return syerrors.AttributeError(path, err)
	}
	return nil
}

// IsFlagged reports whether path carries the ignore attribute.
func IsFlagged(path string) (bool, error) {
	ok, err := hasAttr(path)
	if err != nil {
		return false, syerrors.AttributeError(path, err)
	}
	return ok, nil
}

// Supported checks that files in dir can carry the ignore attribute by
// flagging and unflagging a scratch file.
func Supported(dir string) error {
	if AttrName == "" {
		return ErrUnsupported
	}

	tmp, err := os.CreateTemp(dir, ".syncignore-probe-*")
	if err != nil {
		return fmt.Errorf("create probe file: %w", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(name) }()

	if err := setAttr(name); err != nil {
		return err
	}
	return removeAttr(name)
}
