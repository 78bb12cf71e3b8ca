// Package checksum provides the pluggable checksum algorithms selected by
// the disk header's checksum_algo field. SeaHash (algorithm 1) is
// implemented directly from the original Rust crate; no Go SeaHash package
// exists in the wider ecosystem to depend on instead (see DESIGN.md).
package checksum

// Algorithm is the interface every on-disk checksum implementation
// satisfies: a 64-bit digest over an arbitrary-length byte slice.
type Algorithm interface {
	Sum64(buf []byte) uint64
}

const seaHashConst = 0x7ed0e9fa0d94a33

// diffuse is SeaHash's bijective mixing step: x ^= x>>32; x *= p;
// x ^= x>>32; x *= p; x ^= x>>32.
func diffuse(x uint64) uint64 {
	x ^= x >> 32
	x *= seaHashConst
	x ^= x >> 32
	x *= seaHashConst
	x ^= x >> 32
	return x
}

// SeaHash implements Algorithm using the 4-lane diffuse-based construction
// from original_source/seahash, generalized from the original's fixed
// 4096-byte buffers to arbitrary lengths: full 32-byte blocks are folded
// exactly as the source does, and the trailing partial block (0-31 bytes)
// is folded in as one final, zero-extended block before the length is
// mixed into lane a. This keeps the algorithm a straightforward
// generalization of the documented one rather than a different hash.
type SeaHash struct{}

// seaHashInit is the initial 4-tuple from the original's specification comment.
var seaHashInit = [4]uint64{
	0x16f11fe89b0d677c,
	0xb480a793d8e6c86c,
	0x6fe2e5aaf078ebc9,
	0x14f994a4c5259381,
}

// Sum64 hashes buf.
func (SeaHash) Sum64(buf []byte) uint64 {
	totalLen := len(buf)
	a, b, c, d := seaHashInit[0], seaHashInit[1], seaHashInit[2], seaHashInit[3]

	for len(buf) >= 32 {
		a += le64(buf[0:8])
		b += le64(buf[8:16])
		c += le64(buf[16:24])
		d += le64(buf[24:32])

		a = diffuse(a)
		b = diffuse(b)
		c = diffuse(c)
		d = diffuse(d)

		buf = buf[32:]
	}

	if len(buf) > 0 {
		var words [4]uint64
		for i := 0; len(buf) > 0; i++ {
			n := len(buf)
			if n > 8 {
				n = 8
			}
			words[i] = readPartial(buf[:n])
			buf = buf[n:]
		}
		a += words[0]
		b += words[1]
		c += words[2]
		d += words[3]

		a = diffuse(a)
		b = diffuse(b)
		c = diffuse(c)
		d = diffuse(d)
	}

	a ^= uint64(totalLen)

	a += diffuse(b)
	c += diffuse(d)
	return a + diffuse(c)
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}

func readPartial(b []byte) uint64 {
	return le64(b)
}
