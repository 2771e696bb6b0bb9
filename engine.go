// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package relay implements a bidirectional filtered proxy core: a state
// machine that couples two buffered sockets, a pair of filter instruction
// streams, and a readiness-driven I/O loop so uploads and downloads proceed
// concurrently without head-of-line blocking.
//
// Data flow per direction: socket -> unfilteredBytes (raw intake) ->
// uncommittedBytes (the portion matching the current instruction) -> filter
// callback (may mutate, may emit placeholders) -> placeholder queue on the
// other SockBuf -> socket.
package relay

import (
	"bytes"
	"fmt"
	"time"

	"code.hybscloud.com/relay/internal/ioclass"
	"code.hybscloud.com/relay/internal/readiness"
	"code.hybscloud.com/relay/internal/sockio"
)

// Result reports the outcome of one engine call: the running byte counters
// for each direction, whether each socket ended up closed, whether each
// direction observed an orderly peer close, and whether the call ended
// because the readiness wait timed out rather than because both directions
// were satisfied.
//
// This mirrors the C-shaped readSoFar[2]/sentSoFar[2]/socketClosed[2]/
// readAZero[2]/timedOut out-parameters of the source algorithm, returned as
// a value instead of via pointer out-parameters: idiomatic Go prefers
// return values to out-parameters where the source's motivation (avoiding a
// dependency, in this case avoiding extra allocation) doesn't apply here.
type Result struct {
	TimedOut     bool
	BytesRead    [DirectionMax]uint64
	BytesSent    [DirectionMax]uint64
	SocketClosed [DirectionMax]bool
	ReadAZero    [DirectionMax]bool
}

func (r *Result) capture(sbs [DirectionMax]*SockBuf, socketClosed, readAZero [DirectionMax]bool) {
	for d := 0; d < DirectionMax; d++ {
		r.BytesRead[d] = sbs[d].bytesReadSoFar
		r.BytesSent[d] = sbs[d].bytesWrittenSoFar
	}
	r.SocketClosed = socketClosed
	r.ReadAZero = readAZero
}

// DoBidirectionalFilteredProxyEx runs the core loop to completion or
// timeout. On return, if either direction's socket ended up closed while
// its filter had not reached QuitFilter, it fails with
// ErrSocketClosedDuringCommunication (this can only happen via the write
// path: a read-side close always forces the filter to QuitFilter itself,
// see filterHelper). A timeout is not an error: it is reported via
// Result.TimedOut, and the caller may re-enter with the same sbs and
// filters to continue.
func DoBidirectionalFilteredProxyEx(sbs [DirectionMax]*SockBuf, filters [DirectionMax]Filter, timeout time.Duration, cfg EngineConfig) (Result, error) {
	res, err := doBidirectionalFilteredProxyCore(sbs, filters, timeout, cfg)
	if err != nil {
		return res, err
	}
	for d := 0; d < DirectionMax; d++ {
		if res.SocketClosed[d] && !filters[d].CurrentInstruction().isQuit() {
			return res, fmt.Errorf("%w: %s", ErrSocketClosedDuringCommunication, Direction(d))
		}
	}
	return res, nil
}

// DoUnidirectionalProxyCore is a convenience for a caller who only cares
// about one direction's traffic: it installs DeadFilter on both directions
// (a byte-for-byte relay each way, see Filter docs) and runs until both
// sides disconnect, returning the bytes sent on the requested direction. If
// the readiness wait times out first, it returns the count so far with a
// nil error; the timeout itself is not reported.
func DoUnidirectionalProxyCore(sbs [DirectionMax]*SockBuf, want Direction, timeout time.Duration, cfg EngineConfig) (uint64, error) {
	filters := [DirectionMax]Filter{
		CLIENT: NewDeadFilter(sbs[SERVER]),
		SERVER: NewDeadFilter(sbs[CLIENT]),
	}
	res, err := DoBidirectionalFilteredProxyEx(sbs, filters, timeout, cfg)
	return res.BytesSent[want], err
}

// doBidirectionalFilteredProxyCore is the engine: it computes per-direction
// read/write intent, awaits readiness, performs one pass of reads and
// writes, dispatches to filters, and detects the exit condition. See §4.4.
func doBidirectionalFilteredProxyCore(sbs [DirectionMax]*SockBuf, filters [DirectionMax]Filter, timeout time.Duration, cfg EngineConfig) (res Result, err error) {
	if sbs[CLIENT] == nil || sbs[SERVER] == nil || filters[CLIENT] == nil || filters[SERVER] == nil {
		return res, ErrInvalidArgument
	}

	var readAZero, socketClosed [DirectionMax]bool

	for d := 0; d < DirectionMax; d++ {
		sb := sbs[d]
		f := filters[d]
		f.SetupFirstInstruction()
		if sb.sock == InvalidSocket {
			socketClosed[d] = true
			sb.disconnected = true
			if !f.CurrentInstruction().isQuit() {
				filterHelper(sb, f, len(sb.uncommittedBytes), sb.bytesReadSoFar, true)
			}
		}
	}

	var needToRead [DirectionMax]knowable[int]
	var needToWrite [DirectionMax]int
	var backoffTotal time.Duration
	recvBuf := make([]byte, cfg.BufSize)

	for {
		// Step 1+2: intent computation with bounded retry per filter transition.
		for d := 0; d < DirectionMax; d++ {
			sb, f := sbs[d], filters[d]
			for {
				preLen := len(sb.uncommittedBytes)
				ins := f.CurrentInstruction()
				nr := sb.computeNeedToRead(ins, readAZero[d])
				if len(sb.uncommittedBytes) > preLen {
					filterHelper(sb, f, preLen, sb.bytesReadSoFar, false)
					continue
				}
				needToRead[d] = nr
				break
			}
			needToWrite[d] = 0
			if sb.sock != InvalidSocket {
				needToWrite[d] = sb.placeholders.knownPrefixLen()
			}
		}

		// Step 3: exit test.
		if bothSatisfied(needToRead, needToWrite) {
			if err := checkPendingWrites(sbs); err != nil {
				return res, err
			}
			res.capture(sbs, socketClosed, readAZero)
			cfg.Metrics.ObserveSessionEnd("completed")
			return res, nil
		}

		// Step 4: readiness wait.
		fds, fdIndex := buildPollSet(sbs, needToRead, needToWrite)
		n, perr := readiness.Wait(fds, timeout)
		if perr != nil {
			switch ioclass.Classify(perr) {
			case ioclass.Retry:
				backoffTotal += cfg.SleepTime
				if backoffTotal >= timeout {
					return res, ErrBackoffExceedsTimeout
				}
				time.Sleep(cfg.SleepTime)
				continue
			case ioclass.WouldBlock:
				continue
			default:
				return res, fmt.Errorf("%w: %v", ErrPollError, perr)
			}
		}
		if n == 0 {
			res.TimedOut = true
			res.capture(sbs, socketClosed, readAZero)
			return res, nil
		}
		for d := 0; d < DirectionMax; d++ {
			idx := fdIndex[d]
			if idx < 0 {
				continue
			}
			rv := fds[idx].Revents
			if rv&(readiness.Err|readiness.Nval) != 0 {
				return res, fmt.Errorf("%w: %s", ErrPeerErrorHangup, Direction(d))
			}
			// POLLHUP alone is not immediately fatal when this direction is
			// also polling for read: a real hangup still leaves pending
			// bytes readable and then surfaces as either a zero-length read
			// or a classifiable recv error, both already handled below. Only
			// escalate Hup to a hard failure when there was no read interest
			// to discover it gracefully through (e.g. a stuck write-only fd).
			if rv&readiness.Hup != 0 && fds[idx].Events&readiness.In == 0 {
				return res, fmt.Errorf("%w: %s", ErrPeerErrorHangup, Direction(d))
			}
		}

		// Step 5: writes.
		for d := 0; d < DirectionMax; d++ {
			idx := fdIndex[d]
			if idx < 0 || fds[idx].Revents&readiness.Out == 0 {
				continue
			}
			sb := sbs[d]
			for sb.HasKnownWritesPending() {
				ph := sb.placeholders.front()
				sent, werr := sockio.SendBounded(sb.sock, sb.peer, ph.Contents, timeout)
				if sent > 0 {
					sb.bytesWrittenSoFar += uint64(sent)
					cfg.Metrics.ObserveWrite(Direction(d), sent)
				}
				if werr != nil {
					if ioclass.Classify(werr) == ioclass.PeerClosed {
						socketClosed[d] = true
						sb.ShutdownAndClose()
						break
					}
					return res, fmt.Errorf("%w: %s: %v", ErrWriteError, Direction(d), werr)
				}
				sb.placeholders.popFront()
				cfg.Metrics.ObservePlaceholderDrained(Direction(d), len(ph.Contents))
			}
		}

		// Step 6: reads, at most one receive per direction this iteration.
		for d := 0; d < DirectionMax; d++ {
			idx := fdIndex[d]
			if idx < 0 || fds[idx].Revents&readiness.In == 0 {
				continue
			}
			sb, f := sbs[d], filters[d]
			if sb.sock == InvalidSocket {
				continue
			}
			n, _, rerr := sockio.RecvBounded(sb.sock, recvBuf, timeout)
			if rerr != nil {
				switch ioclass.Classify(rerr) {
				case ioclass.WouldBlock, ioclass.Retry:
					continue
				case ioclass.PeerClosed:
					socketClosed[d] = true
					sb.ShutdownAndClose()
					filterHelper(sb, f, len(sb.uncommittedBytes), sb.bytesReadSoFar, true)
					continue
				default:
					return res, fmt.Errorf("%w: %s: %v", ErrReadError, Direction(d), rerr)
				}
			}
			if n == 0 {
				readAZero[d] = true
				filterHelper(sb, f, len(sb.uncommittedBytes), sb.bytesReadSoFar, true)
				continue
			}

			sb.bytesReadSoFar += uint64(n)
			cfg.Metrics.ObserveRead(Direction(d), n)
			preLen := len(sb.uncommittedBytes)
			dispatchRead(sb, f.CurrentInstruction(), recvBuf[:n], needToRead[d])
			if len(sb.uncommittedBytes) > preLen {
				filterHelper(sb, f, preLen, sb.bytesReadSoFar, false)
			}
		}
	}
}

func bothSatisfied(needToRead [DirectionMax]knowable[int], needToWrite [DirectionMax]int) bool {
	for d := 0; d < DirectionMax; d++ {
		if !needToRead[d].isKnown() || needToRead[d].mustKnown() != 0 || needToWrite[d] != 0 {
			return false
		}
	}
	return true
}

// checkPendingWrites implements the termination post-condition: a SockBuf
// with any remaining placeholder must either still be connected (nothing is
// known-pending, by the exit test above — asserted here for defense) or
// already disconnected, which is an error.
func checkPendingWrites(sbs [DirectionMax]*SockBuf) error {
	for d := 0; d < DirectionMax; d++ {
		sb := sbs[d]
		if !sb.DefinitelyHasFutureWrites() {
			continue
		}
		if sb.disconnected {
			return fmt.Errorf("%w: %s", ErrSocketDroppedWithPendingWrites, Direction(d))
		}
		if sb.HasKnownWritesPending() {
			panic("relay: known-pending write survived the exit test")
		}
	}
	return nil
}

func buildPollSet(sbs [DirectionMax]*SockBuf, needToRead [DirectionMax]knowable[int], needToWrite [DirectionMax]int) ([]readiness.PollFD, [DirectionMax]int) {
	var fds []readiness.PollFD
	fdIndex := [DirectionMax]int{-1, -1}
	for d := 0; d < DirectionMax; d++ {
		sb := sbs[d]
		if sb.sock == InvalidSocket {
			continue
		}
		var events int16
		if !needToRead[d].isKnown() || needToRead[d].mustKnown() > 0 {
			events |= readiness.In
		}
		if needToWrite[d] > 0 {
			events |= readiness.Out
		}
		if events == 0 {
			continue
		}
		fdIndex[d] = len(fds)
		fds = append(fds, readiness.PollFD{Fd: int32(sb.sock), Events: events})
	}
	return fds, fdIndex
}

// filterHelper is the core's single filter entry point (§4.5): it records
// the pre-call uncommitted length, invokes Run, reads back the filter's new
// instruction, enforces the disconnect-implies-quit contract, and applies
// CommitSize.
func filterHelper(sb *SockBuf, f Filter, newDataOffset int, readSoFar uint64, disconnected bool) {
	length := len(sb.uncommittedBytes)
	f.Run(sb.uncommittedBytes, newDataOffset, readSoFar, disconnected)
	ins := f.CurrentInstruction()
	if disconnected && !ins.isQuit() {
		panic("relay: filter did not quit when entered with disconnected=true")
	}
	if ins.CommitSize > 0 {
		if ins.CommitSize > length {
			panic("relay: filter committed more bytes than were available")
		}
		sb.commit(ins.CommitSize)
	}
}

// computeNeedToRead derives needToRead[d] from the current instruction,
// migrating bytes from unfilteredBytes to uncommittedBytes as it goes
// (§4.4 step 1). Re-examining unfilteredBytes on every entry resolves the
// straddling-delimiter ambiguity noted in §9: bytes held back for an
// UntilDelimiter search are always reconsidered the next time this runs.
func (sb *SockBuf) computeNeedToRead(ins Instruction, readAZero bool) knowable[int] {
	if sb.sock == InvalidSocket || readAZero || ins.isQuit() {
		return known(0)
	}
	switch ins.Kind {
	case KindBytesExact:
		n := ins.N
		sum := len(sb.uncommittedBytes) + len(sb.unfilteredBytes)
		if sum >= n {
			sb.moveFromUnfiltered(n - len(sb.uncommittedBytes))
			return known(0)
		}
		return known(n - sum)
	case KindBytesMax:
		n := ins.N
		if len(sb.uncommittedBytes) >= n {
			return known(0)
		}
		sum := len(sb.uncommittedBytes) + len(sb.unfilteredBytes)
		if sum >= n {
			sb.moveFromUnfiltered(n - len(sb.uncommittedBytes))
			return known(0)
		}
		sb.drainUnfiltered()
		return known(n - len(sb.uncommittedBytes))
	case KindBytesUnknown:
		sb.drainUnfiltered()
		return unknown[int]()
	case KindUntilDelimiter:
		if p := bytes.Index(sb.unfilteredBytes, ins.Delimiter); p >= 0 {
			sb.moveFromUnfiltered(p + len(ins.Delimiter))
			return known(0)
		}
		return unknown[int]()
	default:
		return known(0)
	}
}

// dispatchRead places newly received bytes into uncommittedBytes vs
// unfilteredBytes depending on the instruction active when the bytes
// arrived (§4.4 step 6).
func dispatchRead(sb *SockBuf, ins Instruction, data []byte, nr knowable[int]) {
	switch ins.Kind {
	case KindBytesUnknown:
		sb.uncommittedBytes = append(sb.uncommittedBytes, data...)
	case KindBytesMax:
		k := nr.mustKnown()
		if len(data) <= k {
			sb.uncommittedBytes = append(sb.uncommittedBytes, data...)
		} else {
			sb.uncommittedBytes = append(sb.uncommittedBytes, data[:k]...)
			sb.unfilteredBytes = append(sb.unfilteredBytes, data[k:]...)
		}
	case KindUntilDelimiter:
		sb.unfilteredBytes = append(sb.unfilteredBytes, data...)
		if p := bytes.Index(sb.unfilteredBytes, ins.Delimiter); p >= 0 {
			sb.moveFromUnfiltered(p + len(ins.Delimiter))
		}
	case KindBytesExact:
		k := nr.mustKnown()
		if len(data) >= k {
			sb.drainUnfiltered()
			sb.uncommittedBytes = append(sb.uncommittedBytes, data[:k]...)
			sb.unfilteredBytes = append(sb.unfilteredBytes, data[k:]...)
		} else {
			sb.unfilteredBytes = append(sb.unfilteredBytes, data...)
		}
	}
}
