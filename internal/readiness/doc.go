// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package readiness provides a wait-for-any-of operation over a small fixed
// set of socket descriptors, mirroring the poll(2) contract the engine is
// built around.
//
// Implementation is backed by golang.org/x/sys/unix.Poll on unix build
// targets, and falls back to a stub that fails loudly on other ports,
// the same build-tag-driven specialization this codebase uses elsewhere
// (picking a real implementation where the platform is known, refusing to
// silently miscompile where it isn't).
package readiness
