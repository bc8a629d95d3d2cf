// Package iovec provides scatter/gather buffer list arithmetic for vectored
// I/O. A buffer list is an ordered sequence of byte slices that together
// describe one logical region of caller owned memory. The functions here only
// ever produce derived views over that memory; they never copy or allocate
// the underlying bytes.
package iovec

// Buffers is an ordered scatter/gather list of byte slices. The total length
// of the list is the sum of the element lengths.
type Buffers [][]byte

// Length returns the total number of bytes covered by the list.
func (b Buffers) Length() int {
	total := 0
	for _, buf := range b {
		total += len(buf)
	}

	return total
}

// Take returns a new list covering exactly the first n bytes of b. Full
// leading elements are shared verbatim; the element straddling the n byte
// boundary is truncated. n must be in (0, Length()]; anything else is a
// programming error and panics.
func (b Buffers) Take(n int) Buffers {
	if n <= 0 {
		panic("iovec: take of non-positive byte count")
	}

	out := make(Buffers, 0, len(b))
	size := 0

	for _, buf := range b {
		if size+len(buf) >= n {
			out = append(out, buf[:n-size])
			return out
		}

		out = append(out, buf)
		size += len(buf)
	}

	panic("iovec: take past end of buffer list")
}

// Advance returns a view of b with the first n bytes logically consumed.
// Fully consumed leading elements are dropped and the element straddling the
// boundary is re-sliced past the consumed bytes. n must be in [0, Length()];
// advancing past the total length panics.
func (b Buffers) Advance(n int) Buffers {
	if n < 0 {
		panic("iovec: advance by negative byte count")
	}

	for i, buf := range b {
		if n < len(buf) {
			out := make(Buffers, len(b)-i)
			copy(out, b[i:])
			out[0] = buf[n:]

			return out
		}

		n -= len(buf)
	}

	if n > 0 {
		panic("iovec: advance past end of buffer list")
	}

	return Buffers{}
}
