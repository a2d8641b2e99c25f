//go:build !windows

package logger

import (
	"syscall"
	"unsafe"
)

// tcgets is the Linux ioctl number for reading terminal attributes; the
// kernel module this daemon pairs with is Linux-only so no darwin/bsd
// variant is carried.
const tcgets = 0x5401

// isTerminal reports whether fd refers to a terminal.
func isTerminal(fd uintptr) bool {
	var termios syscall.Termios
	_, _, errno := syscall.Syscall6(
		syscall.SYS_IOCTL,
		fd,
		tcgets,
		uintptr(unsafe.Pointer(&termios)),
		0, 0, 0,
	)
	return errno == 0
}
