package appointment

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	ConfirmationCodeLength = 6
	maxCodeAttempts        = 5
)

var alphabetSize = big.NewInt(int64(len(codeAlphabet)))

// NewConfirmationCode draws ConfirmationCodeLength characters uniformly from
// A-Z and 0-9.
func NewConfirmationCode() (string, error) {
	buf := make([]byte, ConfirmationCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate confirmation code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
