package auth

import (
	"crypto/rand"
	"math/big"
)

const (
	referralAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralLength   = 8
	otpLength        = 6
)

// CodeGenerator produces a fresh random code on each call.
type CodeGenerator interface {
	Generate() (string, error)
}

// ReferralCodeGenerator yields 8-character codes over [A-Z0-9]. It does not
// check uniqueness; the store does.
type ReferralCodeGenerator struct{}

func (ReferralCodeGenerator) Generate() (string, error) {
	return randomString(referralAlphabet, referralLength)
}

// OTPGenerator yields 6 decimal digits.
type OTPGenerator struct{}

func (OTPGenerator) Generate() (string, error) {
	return randomString("0123456789", otpLength)
}

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
