// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

import "errors"

var (
	// ErrSocketClosedDuringCommunication reports that a socket was closed
	// while its filter had not reached QuitFilter.
	ErrSocketClosedDuringCommunication = errors.New("relay: socket closed during communication")

	// ErrPollError reports a readiness-wait failure other than EINTR/EAGAIN.
	ErrPollError = errors.New("relay: poll error")

	// ErrPeerErrorHangup reports POLLERR or POLLNVAL on a descriptor, or
	// POLLHUP on one that was not also polled for read.
	ErrPeerErrorHangup = errors.New("relay: peer error or hangup")

	// ErrWriteError reports a non-peer-closed error from the bounded send path.
	ErrWriteError = errors.New("relay: write error")

	// ErrReadError reports a non-peer-closed error from the bounded receive path.
	ErrReadError = errors.New("relay: read error")

	// ErrSocketDroppedWithPendingWrites reports that a socket disconnected while
	// placeholders (known or deferred) were still queued for it.
	ErrSocketDroppedWithPendingWrites = errors.New("relay: socket dropped with pending writes")

	// ErrBackoffExceedsTimeout reports that cumulative EINTR back-off reached
	// the caller's timeout without making progress.
	ErrBackoffExceedsTimeout = errors.New("relay: backoff exceeds timeout")

	// ErrInvalidArgument reports a nil filter, nil SockBuf, or other caller misuse.
	ErrInvalidArgument = errors.New("relay: invalid argument")
)
