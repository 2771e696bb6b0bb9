// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"golang.org/x/sys/unix"
)

// InvalidSocket is the sentinel meaning "no socket / closed".
const InvalidSocket = -1

// SockBuf is the per-direction buffered endpoint: it owns a socket handle,
// the two byte regions described in the package doc (unfilteredBytes and
// uncommittedBytes), and the FIFO of pending writes. SockBufs are constructed and connected by the caller; the
// engine only mutates them for the duration of a call.
type SockBuf struct {
	sock int
	peer unix.Sockaddr // used for connectionless sends; nil for connection-oriented sockets

	unfilteredBytes  []byte
	uncommittedBytes []byte

	placeholders placeholderQueue

	bytesReadSoFar    uint64
	bytesWrittenSoFar uint64

	disconnected bool
}

// NewSockBuf wraps an already-connected socket descriptor. peer is nil for
// connection-oriented sockets and is used as the destination address for
// connectionless sends (recvfrom/sendto) otherwise.
func NewSockBuf(sock int, peer unix.Sockaddr) *SockBuf {
	return &SockBuf{sock: sock, peer: peer}
}

// Fd returns the underlying socket descriptor, or InvalidSocket once closed.
func (sb *SockBuf) Fd() int { return sb.sock }

// BytesRead returns the running count of bytes ever received on this endpoint.
func (sb *SockBuf) BytesRead() uint64 { return sb.bytesReadSoFar }

// BytesWritten returns the running count of bytes ever sent on this endpoint.
func (sb *SockBuf) BytesWritten() uint64 { return sb.bytesWrittenSoFar }

// ShutdownAndClose is idempotent: it marks the endpoint disconnected and
// releases the descriptor to the OS so subsequent iterations treat it as
// invalid. Safe to call more than once or on an already-invalid socket.
func (sb *SockBuf) ShutdownAndClose() {
	if sb.sock == InvalidSocket {
		sb.disconnected = true
		return
	}
	_ = unix.Shutdown(sb.sock, unix.SHUT_RDWR)
	_ = unix.Close(sb.sock)
	sb.sock = InvalidSocket
	sb.disconnected = true
}

// DefinitelyHasFutureWrites reports whether any placeholder, known or not,
// remains queued for this direction.
func (sb *SockBuf) DefinitelyHasFutureWrites() bool {
	return !sb.placeholders.empty()
}

// HasKnownWritesPending reports whether the head-of-queue placeholder has
// its contents known, i.e. the engine could make write progress right now.
func (sb *SockBuf) HasKnownWritesPending() bool {
	p := sb.placeholders.front()
	return p != nil && p.ContentsKnown
}

// Enqueue appends a placeholder to this direction's write queue. Filters
// call this on the opposite-direction SockBuf's queue to reserve or fill a
// transmission slot.
func (sb *SockBuf) Enqueue(p *Placeholder) {
	sb.placeholders.enqueue(p)
}

// moveFromUnfiltered moves the first n bytes of unfilteredBytes onto the
// tail of uncommittedBytes. Callers must ensure n <= len(unfilteredBytes).
func (sb *SockBuf) moveFromUnfiltered(n int) {
	if n <= 0 {
		return
	}
	sb.uncommittedBytes = append(sb.uncommittedBytes, sb.unfilteredBytes[:n]...)
	sb.unfilteredBytes = append(sb.unfilteredBytes[:0], sb.unfilteredBytes[n:]...)
}

// drainUnfiltered moves all of unfilteredBytes onto uncommittedBytes.
func (sb *SockBuf) drainUnfiltered() {
	sb.moveFromUnfiltered(len(sb.unfilteredBytes))
}

// commit discards the first n bytes of uncommittedBytes, declaring that
// prefix finalised by the filter.
func (sb *SockBuf) commit(n int) {
	if n <= 0 {
		return
	}
	sb.uncommittedBytes = append(sb.uncommittedBytes[:0], sb.uncommittedBytes[n:]...)
}
