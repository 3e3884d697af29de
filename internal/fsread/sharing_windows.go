//go:build windows

package fsread

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isPlatformSharingViolation(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}
