//go:build linux || darwin

package xattr

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func setAttr(path string) error {
	return mapErr(unix.Setxattr(path, AttrName, attrValue, 0))
}

func removeAttr(path string) error {
	err := unix.Removexattr(path, AttrName)
	if errors.Is(err, errNoAttr) {
		return nil
	}
	return mapErr(err)
}

func hasAttr(path string) (bool, error) {
	buf := make([]byte, 16)
	_, err := unix.Getxattr(path, AttrName, buf)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNoAttr):
		return false, nil
	default:
		return false, mapErr(err)
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP) {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return err
}
