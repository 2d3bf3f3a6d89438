package xattr

import "golang.org/x/sys/unix"

// AttrName is the attribute the Dropbox client reads.
const AttrName = "com.dropbox.ignored"

var errNoAttr = unix.ENOATTR
