package random

import (
	crand "crypto/rand"
	"math/big"
)

const refCharset = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Reference builds a human-facing order reference. The charset drops I and O
// to keep references readable over the phone.
func Reference(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		l := big.NewInt(int64(len(refCharset)))
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			return "", err
		}
		b[i] = refCharset[num.Int64()]
	}
	return string(b), nil
}
