// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sockio provides non-blocking, timeout-bounded send and receive
// routines over raw socket descriptors. Callers are expected to have put
// the descriptor in non-blocking mode already; this package only drives
// the readiness+syscall loop around it.
package sockio

import (
	"time"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/relay/internal/ioclass"
	"code.hybscloud.com/relay/internal/readiness"
)

// SendBounded loops readiness+send until all of b is dispatched or a
// definitive error occurs. Partial writes are coalesced: sent always
// reflects cumulative progress across the loop, even on error. When peer is
// non-nil, writes go out via sendto (connectionless transports); otherwise
// via write on the connected descriptor. Connection-aborted and
// connection-reset are classified as peer-closed (ioclass.PeerClosed), not
// fatal: the caller decides what to do about it.
func SendBounded(sock int, peer unix.Sockaddr, b []byte, timeout time.Duration) (sent int, err error) {
	deadline := time.Now().Add(timeout)
	for sent < len(b) {
		remaining := time.Until(deadline)
		if timeout > 0 && remaining <= 0 {
			return sent, unix.EAGAIN
		}
		n, werr := sendOnce(sock, peer, b[sent:])
		if n > 0 {
			sent += n
		}
		if werr == nil {
			continue
		}
		switch ioclass.Classify(werr) {
		case ioclass.Retry:
			continue
		case ioclass.WouldBlock:
			fds := []readiness.PollFD{{Fd: int32(sock), Events: readiness.Out}}
			if _, perr := readiness.Wait(fds, remaining); perr != nil {
				return sent, perr
			}
			continue
		case ioclass.PeerClosed:
			return sent, werr
		default:
			return sent, werr
		}
	}
	return sent, nil
}

func sendOnce(sock int, peer unix.Sockaddr, b []byte) (int, error) {
	if peer != nil {
		err := unix.Sendto(sock, b, 0, peer)
		if err != nil {
			return 0, err
		}
		return len(b), nil
	}
	return unix.Write(sock, b)
}

// RecvBounded waits once for readiness, then performs a single receive into
// buf. n == 0 means an orderly close from the peer. EAGAIN/EINTR is
// returned as-is so the caller (the proxy engine) can decide whether to
// retry within the same outer iteration; the engine deliberately does not,
// to preserve per-direction read fairness.
func RecvBounded(sock int, buf []byte, timeout time.Duration) (n int, peer unix.Sockaddr, err error) {
	fds := []readiness.PollFD{{Fd: int32(sock), Events: readiness.In}}
	if cnt, perr := readiness.Wait(fds, timeout); perr != nil {
		return 0, nil, perr
	} else if cnt == 0 {
		return 0, nil, unix.EAGAIN
	}
	n, peer, err = unix.Recvfrom(sock, buf, 0)
	return n, peer, err
}
