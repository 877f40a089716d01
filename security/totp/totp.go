// Package totp wraps time-based one-time code generation and verification
// for second-factor enrollment.
package totp

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Enrollment is the result of generating a fresh shared secret.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
}

// Generate creates a fresh shared secret for the given account label.
// Enrollment is not complete until the caller confirms a valid code.
func Generate(issuer, accountLabel string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountLabel,
	})
	if err != nil {
		return nil, err
	}
	return &Enrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// Verify checks a code against the standard time-step algorithm at the
// current time. Malformed input returns false, never an error.
func Verify(secret, code string) bool {
	return VerifyAt(secret, code, time.Now())
}

// VerifyAt checks a code at an explicit time; tests drive expiry with it.
// One time-step of skew is accepted in either direction.
func VerifyAt(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// CodeAt derives the code for a secret at a given time. Used by tests and
// by nothing on a request path.
func CodeAt(secret string, at time.Time) (string, error) {
	return totp.GenerateCode(secret, at)
}
