// Package refcode generates human-readable reference codes such as hospital
// registration IDs and OPD slot codes.
package refcode

import (
	"crypto/rand"
	"math/big"
	"time"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// New returns prefix + yyyymmdd + n random uppercase alphanumerics.
func New(prefix string, now time.Time, n int) string {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		buf[i] = alphabet[v.Int64()]
	}
	return prefix + now.UTC().Format("20060102") + string(buf)
}
