//go:build !unix

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package readiness

import "time"

// Wait always fails on non-unix ports: there is no native readiness
// primitive wired up for them here.
func Wait(fds []PollFD, timeout time.Duration) (n int, err error) {
	return 0, ErrUnsupportedPlatform
}
