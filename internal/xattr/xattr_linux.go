package xattr

import "golang.org/x/sys/unix"

// AttrName is the attribute the Dropbox client reads. Linux only allows
// unprivileged attributes in the user namespace.
const AttrName = "user.com.dropbox.ignored"

var errNoAttr = unix.ENODATA
