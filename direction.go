// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

// Direction names one side of a mediated pair. CLIENT and SERVER are
// conventional labels; the engine treats both symmetrically.
type Direction uint8

const (
	CLIENT Direction = iota
	SERVER

	// DirectionMax is the pair cardinality, used to size [DirectionMax]arrays.
	DirectionMax = 2
)

func (d Direction) String() string {
	switch d {
	case CLIENT:
		return "client"
	case SERVER:
		return "server"
	default:
		return "unknown"
	}
}
