// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func quitNowFilter() Filter {
	return &funcFilter{instr: QuitFilter()}
}

func testEngineConfig() EngineConfig {
	return NewEngineConfig(WithBufSize(4096), WithSleepTime(time.Millisecond))
}

// TestEngine_PassthroughEcho is scenario 1 (§8): CLIENT writes "hello", both
// directions relay byte-for-byte via DeadFilter, and the conversation ends
// cleanly from both sides.
func TestEngine_PassthroughEcho(t *testing.T) {
	clientSock, clientPeer := newRawPair(t)
	serverSock, serverPeer := newRawPair(t)

	sbs := [DirectionMax]*SockBuf{
		CLIENT: NewSockBuf(clientSock, nil),
		SERVER: NewSockBuf(serverSock, nil),
	}
	filters := [DirectionMax]Filter{
		CLIENT: NewDeadFilter(sbs[SERVER]),
		SERVER: NewDeadFilter(sbs[CLIENT]),
	}

	_, err := unix.Write(clientPeer, []byte("hello"))
	assert.NilError(t, err)
	assert.NilError(t, unix.Close(clientPeer))

	// The SERVER direction only reaches QuitFilter once its own read side
	// disconnects, so a helper goroutine plays the upstream peer: drain the
	// forwarded bytes, then close once they've all arrived.
	var received []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 16)
		for len(received) < 5 {
			n, rerr := unix.Read(serverPeer, buf)
			if n > 0 {
				received = append(received, buf[:n]...)
			}
			if rerr != nil && rerr != unix.EAGAIN {
				break
			}
			time.Sleep(time.Millisecond)
		}
		unix.Close(serverPeer)
	}()

	res, err := DoBidirectionalFilteredProxyEx(sbs, filters, 2*time.Second, testEngineConfig())
	<-done
	assert.NilError(t, err)
	assert.Assert(t, !res.TimedOut)
	assert.Equal(t, res.BytesRead[CLIENT], uint64(5))
	assert.Equal(t, res.BytesSent[SERVER], uint64(5))
	assert.Equal(t, string(received), "hello")
	assert.Assert(t, !sbs[CLIENT].DefinitelyHasFutureWrites())
	assert.Assert(t, !sbs[SERVER].DefinitelyHasFutureWrites())
}

// TestEngine_DelimiterFraming is scenario 2: CLIENT filter uses
// UntilDelimiter, and leftover bytes after the delimiter remain observable
// in unfilteredBytes.
func TestEngine_DelimiterFraming(t *testing.T) {
	clientSock, peer := newRawPair(t)
	sbs := [DirectionMax]*SockBuf{
		CLIENT: NewSockBuf(clientSock, nil),
		SERVER: {sock: InvalidSocket},
	}

	var gotUncommitted []byte
	cf := &funcFilter{}
	cf.onSetup = func(f *funcFilter) { f.instr = UntilDelimiter([]byte("\r\n")) }
	cf.onRun = func(f *funcFilter, uncommitted []byte, newDataOffset int, readSoFar uint64, disconnected bool) {
		gotUncommitted = append([]byte(nil), uncommitted...)
		ins := QuitFilter()
		ins.CommitSize = len(uncommitted)
		f.instr = ins
	}
	filters := [DirectionMax]Filter{CLIENT: cf, SERVER: quitNowFilter()}

	_, err := unix.Write(peer, []byte("GET /\r\nBODY"))
	assert.NilError(t, err)

	res, err := DoBidirectionalFilteredProxyEx(sbs, filters, 2*time.Second, testEngineConfig())
	assert.NilError(t, err)
	assert.Assert(t, !res.TimedOut)
	assert.Equal(t, string(gotUncommitted), "GET /\r\n")
	assert.Equal(t, string(sbs[CLIENT].unfilteredBytes), "BODY")
}

// TestEngine_ExactByteCountOvershoot is scenario 3: SERVER filter uses
// BytesExact{4} and the peer sends 10 bytes in one shot; only 4 are
// delivered to the filter and 6 remain staged in unfilteredBytes.
func TestEngine_ExactByteCountOvershoot(t *testing.T) {
	serverSock, peer := newRawPair(t)
	sbs := [DirectionMax]*SockBuf{
		CLIENT: {sock: InvalidSocket},
		SERVER: NewSockBuf(serverSock, nil),
	}

	runs := 0
	var gotOffset int
	var gotLen int
	sf := &funcFilter{}
	sf.onSetup = func(f *funcFilter) { f.instr = BytesExact(4) }
	sf.onRun = func(f *funcFilter, uncommitted []byte, newDataOffset int, readSoFar uint64, disconnected bool) {
		runs++
		gotOffset = newDataOffset
		gotLen = len(uncommitted)
		ins := QuitFilter()
		ins.CommitSize = len(uncommitted)
		f.instr = ins
	}
	filters := [DirectionMax]Filter{CLIENT: quitNowFilter(), SERVER: sf}

	_, err := unix.Write(peer, []byte("0123456789"))
	assert.NilError(t, err)

	res, err := DoBidirectionalFilteredProxyEx(sbs, filters, 2*time.Second, testEngineConfig())
	assert.NilError(t, err)
	assert.Assert(t, !res.TimedOut)
	assert.Equal(t, runs, 1)
	assert.Equal(t, gotOffset, 0)
	assert.Equal(t, gotLen, 4)
	assert.Equal(t, len(sbs[SERVER].unfilteredBytes), 6)
}

// TestEngine_PeerResetMidStream is scenario 4: the peer sends 3 bytes then
// resets; the filter sees the 3 bytes with disconnected=false, then is
// re-entered with disconnected=true and must reach QuitFilter.
func TestEngine_PeerResetMidStream(t *testing.T) {
	clientSock, peer := newRawPair(t)
	sbs := [DirectionMax]*SockBuf{
		CLIENT: NewSockBuf(clientSock, nil),
		SERVER: {sock: InvalidSocket},
	}

	var sawData, sawDisconnect bool
	cf := &funcFilter{}
	cf.onSetup = func(f *funcFilter) { f.instr = BytesUnknown() }
	cf.onRun = func(f *funcFilter, uncommitted []byte, newDataOffset int, readSoFar uint64, disconnected bool) {
		if disconnected {
			sawDisconnect = true
			f.instr = QuitFilter()
			return
		}
		sawData = true
		ins := BytesUnknown()
		ins.CommitSize = len(uncommitted)
		f.instr = ins
	}
	filters := [DirectionMax]Filter{CLIENT: cf, SERVER: quitNowFilter()}

	_, err := unix.Write(peer, []byte("abc"))
	assert.NilError(t, err)
	assert.NilError(t, unix.SetsockoptLinger(peer, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 0}))
	assert.NilError(t, unix.Close(peer))

	res, err := DoBidirectionalFilteredProxyEx(sbs, filters, 2*time.Second, testEngineConfig())
	assert.NilError(t, err)
	assert.Assert(t, !res.TimedOut)
	assert.Assert(t, sawData)
	assert.Assert(t, sawDisconnect)
	assert.Assert(t, res.SocketClosed[CLIENT])
}

// TestEngine_Timeout is scenario 5: both filters await BytesExact{100} and
// the peer sends nothing; the call returns with TimedOut=true and no
// progress.
func TestEngine_Timeout(t *testing.T) {
	clientSock, _ := newRawPair(t)
	serverSock, _ := newRawPair(t)
	sbs := [DirectionMax]*SockBuf{
		CLIENT: NewSockBuf(clientSock, nil),
		SERVER: NewSockBuf(serverSock, nil),
	}
	mk := func() Filter {
		f := &funcFilter{}
		f.onSetup = func(f *funcFilter) { f.instr = BytesExact(100) }
		return f
	}
	filters := [DirectionMax]Filter{CLIENT: mk(), SERVER: mk()}

	res, err := DoBidirectionalFilteredProxyEx(sbs, filters, 50*time.Millisecond, testEngineConfig())
	assert.NilError(t, err)
	assert.Assert(t, res.TimedOut)
	assert.Equal(t, res.BytesRead[CLIENT], uint64(0))
	assert.Equal(t, res.BytesRead[SERVER], uint64(0))
	assert.Equal(t, res.BytesSent[CLIENT], uint64(0))
	assert.Equal(t, res.BytesSent[SERVER], uint64(0))
}

// TestEngine_PendingPlaceholderOnDrop is scenario 6: a placeholder with
// unknown contents is queued on SERVER, then the SERVER socket resets; the
// engine must fail with ErrSocketDroppedWithPendingWrites rather than
// silently dropping the reservation.
func TestEngine_PendingPlaceholderOnDrop(t *testing.T) {
	serverSock, peer := newRawPair(t)
	serverSB := NewSockBuf(serverSock, nil)
	serverSB.Enqueue(NewDeferredPlaceholder())

	sbs := [DirectionMax]*SockBuf{
		CLIENT: {sock: InvalidSocket},
		SERVER: serverSB,
	}
	// SERVER must actually attempt a read to discover the reset; only then
	// does the engine mark it disconnected with the placeholder still
	// pending, which is the condition under test.
	sf := &funcFilter{}
	sf.onSetup = func(f *funcFilter) { f.instr = BytesUnknown() }
	sf.onRun = func(f *funcFilter, uncommitted []byte, newDataOffset int, readSoFar uint64, disconnected bool) {
		if disconnected {
			f.instr = QuitFilter()
			return
		}
		ins := BytesUnknown()
		ins.CommitSize = len(uncommitted)
		f.instr = ins
	}
	filters := [DirectionMax]Filter{CLIENT: quitNowFilter(), SERVER: sf}

	assert.NilError(t, unix.SetsockoptLinger(peer, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 0}))
	assert.NilError(t, unix.Close(peer))

	_, err := DoBidirectionalFilteredProxyEx(sbs, filters, 2*time.Second, testEngineConfig())
	assert.Assert(t, errors.Is(err, ErrSocketDroppedWithPendingWrites), err)
}

// TestEngine_CommitExceedsAvailablePanics asserts the "commit <= available"
// law: a filter that reports a CommitSize beyond what it was handed is a
// contract violation, not a recoverable engine condition.
func TestEngine_CommitExceedsAvailablePanics(t *testing.T) {
	clientSock, peer := newRawPair(t)
	sbs := [DirectionMax]*SockBuf{
		CLIENT: NewSockBuf(clientSock, nil),
		SERVER: {sock: InvalidSocket},
	}
	cf := &funcFilter{}
	cf.onSetup = func(f *funcFilter) { f.instr = BytesUnknown() }
	cf.onRun = func(f *funcFilter, uncommitted []byte, newDataOffset int, readSoFar uint64, disconnected bool) {
		ins := BytesUnknown()
		ins.CommitSize = len(uncommitted) + 1
		f.instr = ins
	}
	filters := [DirectionMax]Filter{CLIENT: cf, SERVER: quitNowFilter()}

	_, err := unix.Write(peer, []byte("x"))
	assert.NilError(t, err)

	defer func() {
		r := recover()
		assert.Assert(t, r != nil, "expected a panic for over-commit")
	}()
	_, _ = DoBidirectionalFilteredProxyEx(sbs, filters, time.Second, testEngineConfig())
}

// TestEngine_UnknownToQuitSingleByte is a boundary behaviour: a filter on
// BytesUnknown transitions straight to QuitFilter after a single byte.
func TestEngine_UnknownToQuitSingleByte(t *testing.T) {
	clientSock, peer := newRawPair(t)
	sbs := [DirectionMax]*SockBuf{
		CLIENT: NewSockBuf(clientSock, nil),
		SERVER: {sock: InvalidSocket},
	}
	var gotLen int
	cf := &funcFilter{}
	cf.onSetup = func(f *funcFilter) { f.instr = BytesUnknown() }
	cf.onRun = func(f *funcFilter, uncommitted []byte, newDataOffset int, readSoFar uint64, disconnected bool) {
		if disconnected {
			f.instr = QuitFilter()
			return
		}
		gotLen = len(uncommitted)
		ins := QuitFilter()
		ins.CommitSize = len(uncommitted)
		f.instr = ins
	}
	filters := [DirectionMax]Filter{CLIENT: cf, SERVER: quitNowFilter()}

	_, err := unix.Write(peer, []byte("Z"))
	assert.NilError(t, err)

	res, err := DoBidirectionalFilteredProxyEx(sbs, filters, 2*time.Second, testEngineConfig())
	assert.NilError(t, err)
	assert.Assert(t, !res.TimedOut)
	assert.Equal(t, gotLen, 1)
	assert.Assert(t, cmp.Equal(len(sbs[CLIENT].uncommittedBytes), 0))
}

// TestDoUnidirectionalProxyCore exercises the single-direction convenience
// wrapper: both sides get a DeadFilter and the caller only reads back the
// byte count for the direction it asked about.
func TestDoUnidirectionalProxyCore(t *testing.T) {
	clientSock, clientPeer := newRawPair(t)
	serverSock, serverPeer := newRawPair(t)

	sbs := [DirectionMax]*SockBuf{
		CLIENT: NewSockBuf(clientSock, nil),
		SERVER: NewSockBuf(serverSock, nil),
	}

	_, err := unix.Write(clientPeer, []byte("request"))
	assert.NilError(t, err)
	assert.NilError(t, unix.Close(clientPeer))

	var received []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 16)
		for len(received) < len("request") {
			n, rerr := unix.Read(serverPeer, buf)
			if n > 0 {
				received = append(received, buf[:n]...)
			}
			if rerr != nil && rerr != unix.EAGAIN {
				break
			}
			time.Sleep(time.Millisecond)
		}
		unix.Close(serverPeer)
	}()

	sent, err := DoUnidirectionalProxyCore(sbs, SERVER, 2*time.Second, testEngineConfig())
	<-done
	assert.NilError(t, err)
	assert.Equal(t, sent, uint64(len("request")))
	assert.Equal(t, string(received), "request")
}
