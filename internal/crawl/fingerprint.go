package crawl

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Fingerprint is a digest of the ordered identifiers visible on a listing
// page. It only detects page changes; it is not an identity.
type Fingerprint xxh3.Uint128

// FingerprintOf hashes ids in order. Each identifier is length-prefixed so
// that ["ab","c"] and ["a","bc"] differ.
func FingerprintOf(ids []string) Fingerprint {
	h := xxh3.New()
	var n [8]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint64(n[:], uint64(len(id)))
		h.Write(n[:])
		h.WriteString(id)
	}
	return Fingerprint(h.Sum128())
}

func (f Fingerprint) String() string {
	b := xxh3.Uint128(f).Bytes()
	return hex.EncodeToString(b[:])
}
