//go:build unix

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package readiness

import (
	"time"

	"golang.org/x/sys/unix"
)

// Wait blocks until any of fds is ready, timeout elapses, or the wait is
// interrupted. It is a thin wrapper over unix.Poll: revents are copied back
// onto fds in place. Callers retry locally on EINTR/EAGAIN (§4.1); any other
// error is fatal.
func Wait(fds []PollFD, timeout time.Duration) (n int, err error) {
	raw := make([]unix.PollFd, len(fds))
	for i, f := range fds {
		raw[i] = unix.PollFd{Fd: f.Fd, Events: f.Events}
	}
	n, err = unix.Poll(raw, timeoutMillis(timeout))
	for i := range raw {
		fds[i].Revents = raw[i].Revents
	}
	return n, err
}
