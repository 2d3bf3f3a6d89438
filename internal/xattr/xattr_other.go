//go:build !linux && !darwin

package xattr

// AttrName is empty where extended attributes are not supported.
const AttrName = ""

func setAttr(string) error { return ErrUnsupported }

func removeAttr(string) error { return ErrUnsupported }

func hasAttr(string) (bool, error) { return false, ErrUnsupported }
