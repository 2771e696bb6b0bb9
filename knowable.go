// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

// knowable[T] models a value that is either known or genuinely unknown.
// It is a value type rather than a pointer so the zero value is never
// mistaken for Known(zero-value-of-T): the "ok" flag carries that
// distinction explicitly.
type knowable[T any] struct {
	ok bool
	v  T
}

// known returns a Known(v).
func known[T any](v T) knowable[T] { return knowable[T]{ok: true, v: v} }

// unknown returns the Unknown value.
func unknown[T any]() knowable[T] { return knowable[T]{} }

// isKnown reports whether the value is Known.
func (k knowable[T]) isKnown() bool { return k.ok }

// mustKnown returns the carried value; callers must check isKnown first.
func (k knowable[T]) mustKnown() T { return k.v }
