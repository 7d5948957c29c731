package accounts

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"

	"github.com/goliatone/go-errors"
)

// VerificationCodeLength is the number of digits in an emailed code.
const VerificationCodeLength = 6

// ResetTokenBytes is the entropy of a reset token before encoding.
const ResetTokenBytes = 32

// NewVerificationCode returns a random numeric code, zero padded to
// VerificationCodeLength digits. Comparison at verify time is exact: no
// trimming, no case folding.
func NewVerificationCode() (string, error) {
	digits := make([]byte, VerificationCodeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate verification code")
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// NewResetToken returns an opaque URL-safe token with ResetTokenBytes of
// entropy.
func NewResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate reset token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
