package checksum

import "github.com/tfs-io/tfs/internal/leb"

// fingerprintSeeds are four independent SeaHash seeds whose results are
// concatenated into a 256-bit fingerprint for the dedup table (component
// J): a collision there costs nothing but a missed dedup opportunity, so a
// composite of the module's own fast hash is enough; there is no need to
// reach for a cryptographic hash the corpus never imports.
var fingerprintSeeds = [4]uint64{
	0x9e3779b97f4a7c15,
	0xbf58476d1ce4e5b9,
	0x94d049bb133111eb,
	0x2545f4914f6cdd1d,
}

// Fingerprint256 computes a 256-bit fingerprint of buf for dedup-table
// collision resolution: four seeded SeaHash sums concatenated.
func Fingerprint256(buf []byte) [32]byte {
	var out [32]byte
	seeded := make([]byte, 8+len(buf))
	copy(seeded[8:], buf)
	for i, seed := range fingerprintSeeds {
		leb.PutUint64(seeded[:8], seed)
		h := (SeaHash{}).Sum64(seeded)
		leb.PutUint64(out[i*8:i*8+8], h)
	}
	return out
}
