//go:build !unix && !windows

package fsread

func isPlatformSharingViolation(error) bool { return false }
