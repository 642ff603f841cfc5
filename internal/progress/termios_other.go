// +build !linux

package progress

import "golang.org/x/sys/unix"

const ioctlTermiosReq = unix.TIOCGETA
