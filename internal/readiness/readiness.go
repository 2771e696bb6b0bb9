// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package readiness

import (
	"errors"
	"time"
)

// ErrUnsupportedPlatform is returned by Wait on ports with no native
// readiness primitive wired up, so the package still compiles and fails
// loudly rather than silently miscompiling.
var ErrUnsupportedPlatform = errors.New("readiness: unsupported platform")

// Event interest/result flags, mirroring POLLIN/POLLOUT/POLLPRI/POLLERR/
// POLLHUP/POLLNVAL.
const (
	In   int16 = 0x001
	Pri  int16 = 0x002
	Out  int16 = 0x004
	Err  int16 = 0x008
	Hup  int16 = 0x010
	Nval int16 = 0x020
)

// PollFD mirrors unix.PollFd: a descriptor, its requested events, and the
// events that actually occurred after Wait returns.
type PollFD struct {
	Fd      int32
	Events  int16
	Revents int16
}

// timeoutMillis converts a time.Duration to the millisecond timeout poll(2)
// expects, rounding up so a positive sub-millisecond timeout never becomes
// 0, which poll(2) treats as "don't wait". A non-positive duration maps to 0.
func timeoutMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > 1<<31-1 {
		ms = 1<<31 - 1
	}
	return int(ms)
}
