package speck

import (
	"github.com/tfs-io/tfs/internal/leb"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. N=16384 is the scrypt paper's interactive-use
// recommendation; r/p are its standard companions.
const (
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

// DeriveXEX stretches password against salt (the disk header's UID) via
// scrypt into the four 64-bit words needed for an XEX cipher: two for the
// data key, two for the tweak key.
func DeriveXEX(password []byte, salt []byte) (XEX, error) {
	// 32 bytes of output: data key (16 bytes) + tweak key (16 bytes).
	stretched, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return XEX{}, err
	}

	dk1, dk2 := leb.Uint64(stretched[0:8]), leb.Uint64(stretched[8:16])
	tk1, tk2 := leb.Uint64(stretched[16:24]), leb.Uint64(stretched[24:32])

	return NewXEX(NewKey(dk1, dk2), NewKey(tk1, tk2)), nil
}
