package protoserial

import "math/bits"

// elementMarker records which elements of a message were seen on the wire.
type elementMarker struct {
	words []uint64
	count int
}

func newElementMarker(count int) elementMarker {
	return elementMarker{words: make([]uint64, (count+63)/64), count: count}
}

func (m *elementMarker) mark(i int) {
	if i >= 0 && i < m.count {
		m.words[i/64] |= 1 << (uint(i) % 64)
	}
}

func (m *elementMarker) marked(i int) bool {
	return m.words[i/64]&(1<<(uint(i)%64)) != 0
}

// nextUnmarked returns the lowest unmarked index, or -1.
func (m *elementMarker) nextUnmarked() int {
	for w, word := range m.words {
		if word == ^uint64(0) {
			continue
		}
		i := w*64 + bits.TrailingZeros64(^word)
		if i >= m.count {
			return -1
		}
		return i
	}
	return -1
}
