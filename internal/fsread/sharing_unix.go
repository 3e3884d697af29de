//go:build unix

package fsread

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isPlatformSharingViolation(err error) bool {
	return errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.ETXTBSY)
}
