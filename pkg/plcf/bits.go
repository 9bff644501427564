package plcf

// bitReader reads MSB-first bit fields from a byte slice.
type bitReader struct {
	buf []byte
	pos int
}

func (r *bitReader) read(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		byteIdx := r.pos / 8
		bit := (r.buf[byteIdx] >> (7 - uint(r.pos%8))) & 1
		v = v<<1 | uint32(bit)
		r.pos++
	}
	return v
}

// bitWriter is the counterpart of bitReader. The buffer must be zeroed.
type bitWriter struct {
	buf []byte
	pos int
}

func (w *bitWriter) write(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if (v>>uint(i))&1 != 0 {
			w.buf[w.pos/8] |= 1 << (7 - uint(w.pos%8))
		}
		w.pos++
	}
}
