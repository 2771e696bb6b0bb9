// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

// Placeholder is a reservation in a direction's write queue. A filter may
// enqueue one before its contents are known (ContentsKnown == false) and
// fill Contents in later via some external event; the engine only ever
// drains placeholders from the head of the queue, in order, and only once
// ContentsKnown is true.
type Placeholder struct {
	ContentsKnown bool
	Contents      []byte
}

// NewPlaceholder returns a placeholder whose contents are already known.
func NewPlaceholder(contents []byte) Placeholder {
	return Placeholder{ContentsKnown: true, Contents: contents}
}

// NewDeferredPlaceholder returns a placeholder reserving a slot whose
// contents are not yet known. Fill is used to supply them later.
func NewDeferredPlaceholder() *Placeholder {
	return &Placeholder{}
}

// Fill supplies the contents of a previously deferred placeholder. contents
// must be non-empty: a placeholder with ContentsKnown true and empty
// Contents would violate the queue invariant (§3).
func (p *Placeholder) Fill(contents []byte) {
	p.Contents = contents
	p.ContentsKnown = true
}

// placeholderQueue is a value-owned FIFO. Dequeue-and-drop is a single slice
// reslice; there is no manual lifetime bookkeeping for the dropped entry.
type placeholderQueue struct {
	items []*Placeholder
}

func (q *placeholderQueue) enqueue(p *Placeholder) {
	q.items = append(q.items, p)
}

func (q *placeholderQueue) empty() bool { return len(q.items) == 0 }

func (q *placeholderQueue) front() *Placeholder {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// popFront removes the head entry. Callers must only do this once its
// contents have been fully sent.
func (q *placeholderQueue) popFront() {
	if len(q.items) == 0 {
		return
	}
	q.items[0] = nil
	q.items = q.items[1:]
}

// knownPrefixLen sums Contents length over the contiguous prefix of known
// placeholders (§4.4 step 1).
func (q *placeholderQueue) knownPrefixLen() int {
	n := 0
	for _, p := range q.items {
		if !p.ContentsKnown {
			break
		}
		n += len(p.Contents)
	}
	return n
}
