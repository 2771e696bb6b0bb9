// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

// Filter is a driven object that publishes one Instruction at a time and is
// re-entered when the core has assembled bytes matching that instruction.
//
// Contract: if disconnected is true when Run is entered, the next
// instruction returned from CurrentInstruction MUST be QuitFilter; the core
// asserts this (panics on violation — a filter bug, not a recoverable
// engine condition).
type Filter interface {
	// SetupFirstInstruction is called once at loop entry to establish the
	// initial instruction.
	SetupFirstInstruction()

	// CurrentInstruction is a pure observation: the same instruction is
	// returned on successive calls until the core commits bytes and
	// re-enters the filter via Run.
	CurrentInstruction() Instruction

	// Run is called after the core has appended
	// len(uncommitted)-newDataOffset new bytes to uncommitted, satisfying
	// the current instruction's window (or upon disconnect). The filter may
	// edit uncommitted in place, enqueue placeholders on the
	// opposite-direction SockBuf's queue, and choose the next instruction
	// (including setting its CommitSize) via its own state.
	Run(uncommitted []byte, newDataOffset int, readSoFar uint64, disconnected bool)
}

// DeadFilter is the one concrete filter the core itself provides: a
// byte-for-byte relay that never inspects or rewrites what it sees. It asks
// for whatever arrives (BytesUnknown), copies each batch straight onto a
// known placeholder on the partner SockBuf's write queue, and commits all
// of it immediately. It only reaches QuitFilter once its own direction
// disconnects. Pair two DeadFilters, each pointed at the other's SockBuf,
// for a pure relay (DoUnidirectionalProxyCore does exactly this; so does
// cmd/relayd's plain TCP forwarder).
type DeadFilter struct {
	partner *SockBuf
	instr   Instruction
}

// NewDeadFilter returns a DeadFilter that forwards everything it reads onto
// partner's write queue.
func NewDeadFilter(partner *SockBuf) *DeadFilter {
	return &DeadFilter{partner: partner, instr: BytesUnknown()}
}

func (f *DeadFilter) SetupFirstInstruction() { f.instr = BytesUnknown() }

func (f *DeadFilter) CurrentInstruction() Instruction { return f.instr }

func (f *DeadFilter) Run(uncommitted []byte, newDataOffset int, _ uint64, disconnected bool) {
	if disconnected {
		f.instr = QuitFilter()
		return
	}
	if fresh := uncommitted[newDataOffset:]; len(fresh) > 0 && f.partner != nil {
		contents := append([]byte(nil), fresh...)
		p := NewPlaceholder(contents)
		f.partner.Enqueue(&p)
	}
	next := BytesUnknown()
	next.CommitSize = len(uncommitted)
	f.instr = next
}
