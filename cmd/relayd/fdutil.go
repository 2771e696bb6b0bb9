// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

var errNotTCPConn = errors.New("relayd: connection is not a *net.TCPConn")

// dupNonblockingFd extracts a standalone, non-blocking duplicate of conn's
// underlying socket descriptor. conn.(*net.TCPConn).File() hands back a
// duplicate already in blocking mode (per its documented contract); the
// engine needs non-blocking semantics, so this flips that bit back before
// handing the descriptor to relay.SockBuf. The *os.File itself is closed
// once duplicated again via unix.Dup: the caller owns the returned
// descriptor (handleConn releases it through relay.SockBuf.ShutdownAndClose).
func dupNonblockingFd(conn net.Conn) (int, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return -1, errNotTCPConn
	}
	f, err := tc.File()
	if err != nil {
		return -1, err
	}
	defer f.Close()

	fd := int(f.Fd())
	dup, err := unix.Dup(fd)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(dup, true); err != nil {
		unix.Close(dup)
		return -1, err
	}
	return dup, nil
}
