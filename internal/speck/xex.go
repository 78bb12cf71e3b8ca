package speck

import "github.com/tfs-io/tfs/internal/leb"

// XEX wraps Speck in an XEX-mode tweakable construction (as used by XTS),
// so a whole sector can be encrypted/decrypted as a sequence of 16-byte
// Speck blocks, each masked by a tweak derived from the sector index and
// advanced by multiplication in GF(2^128) between blocks. This gives every
// sector (and every 16-byte sub-block within it) a distinct keystream even
// though the same two keys are reused for every sector on the disk.
type XEX struct {
	data  Key
	tweak Key
}

// NewXEX builds an XEX cipher from two independent key schedules: one for
// the data blocks, one for encrypting the per-sector tweak.
func NewXEX(dataKey, tweakKey Key) XEX {
	return XEX{data: dataKey, tweak: tweakKey}
}

// EncryptSector encrypts buf (length must be a multiple of 16) in place,
// using sectorIndex as the XEX tweak.
func (x XEX) EncryptSector(buf []byte, sectorIndex uint64) {
	x.crypt(buf, sectorIndex, x.data.EncryptBlock)
}

// DecryptSector decrypts buf (length must be a multiple of 16) in place.
func (x XEX) DecryptSector(buf []byte, sectorIndex uint64) {
	x.crypt(buf, sectorIndex, x.data.DecryptBlock)
}

func (x XEX) crypt(buf []byte, sectorIndex uint64, block func(uint64, uint64) (uint64, uint64)) {
	tLo, tHi := x.tweak.EncryptBlock(sectorIndex, 0)

	for off := 0; off+16 <= len(buf); off += 16 {
		p1 := leb.Uint64(buf[off : off+8])
		p2 := leb.Uint64(buf[off+8 : off+16])

		p1 ^= tLo
		p2 ^= tHi
		c1, c2 := block(p1, p2)
		c1 ^= tLo
		c2 ^= tHi

		leb.PutUint64(buf[off:off+8], c1)
		leb.PutUint64(buf[off+8:off+16], c2)

		tLo, tHi = gfDouble(tLo, tHi)
	}
}

// gfDouble multiplies the 128-bit value (lo, hi) by the polynomial x in
// GF(2^128), using the standard XTS reduction constant 0x87 on overflow.
func gfDouble(lo, hi uint64) (uint64, uint64) {
	carry := hi >> 63
	hi = (hi << 1) | (lo >> 63)
	lo = lo << 1
	if carry != 0 {
		lo ^= 0x87
	}
	return lo, hi
}
