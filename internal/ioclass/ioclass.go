// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ioclass collapses the cross-platform error code aliases a
// poll/send/recv syscall can return (EAGAIN, EINTR, ECONNRESET,
// ECONNABORTED, EPIPE, WSAECONNRESET and friends on other ports) into a
// single four-member enum. The engine built on top never inspects a raw
// errno; it switches on Class instead.
package ioclass

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Class is the classification of an I/O or poll error.
type Class uint8

const (
	// Fatal is an error the caller cannot recover from locally; propagate it.
	Fatal Class = iota
	// Retry means the syscall was interrupted (EINTR) and should be reissued.
	Retry
	// WouldBlock means the descriptor has no data/room right now (EAGAIN/EWOULDBLOCK).
	WouldBlock
	// PeerClosed means the remote end closed or reset the connection
	// (ECONNRESET, ECONNABORTED, EPIPE).
	PeerClosed
)

// Classify maps err, as returned by a golang.org/x/sys/unix syscall, to a
// Class. A nil err is not a valid input and classifies as Fatal, since
// callers are expected to check err != nil first.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return Fatal
	}
	switch errno {
	case unix.EINTR:
		return Retry
	case unix.EAGAIN:
		return WouldBlock
	case unix.ECONNRESET, unix.ECONNABORTED, unix.EPIPE, unix.ENOTCONN, unix.ESHUTDOWN:
		return PeerClosed
	default:
		return Fatal
	}
}
