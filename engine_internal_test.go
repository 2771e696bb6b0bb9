// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"testing"

	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"
)

// newRawPair returns two connected, non-blocking unix stream socket
// descriptors, closed automatically at test cleanup.
func newRawPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	assert.NilError(t, err)
	assert.NilError(t, unix.SetNonblock(fds[0], true))
	assert.NilError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// funcFilter is a Filter whose behavior is supplied as closures, letting
// tests script exactly the instruction sequence and side effects they need
// without a different concrete Filter type per scenario.
type funcFilter struct {
	instr   Instruction
	onSetup func(f *funcFilter)
	onRun   func(f *funcFilter, uncommitted []byte, newDataOffset int, readSoFar uint64, disconnected bool)
}

func (f *funcFilter) SetupFirstInstruction() {
	if f.onSetup != nil {
		f.onSetup(f)
	}
}

func (f *funcFilter) CurrentInstruction() Instruction { return f.instr }

func (f *funcFilter) Run(uncommitted []byte, newDataOffset int, readSoFar uint64, disconnected bool) {
	if f.onRun != nil {
		f.onRun(f, uncommitted, newDataOffset, readSoFar, disconnected)
	}
}
