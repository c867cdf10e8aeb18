// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package auth

import (
	"crypto/rand"
	"math/big"

	"github.com/samber/oops"
)

// Character classes for generated passwords and salts. The letter alphabets
// omit o and O so generated credentials can't be misread against 0.
const (
	passwordDigits    = "0123456789"
	passwordUppercase = "ABCDEFGHIJKLMNPQRSTUVWXYZ"
	passwordLowercase = "abcdefghijklmnpqrstuvwxyz"
)

// Salt and bootstrap credential shapes.
const (
	saltLength      = 64
	saltMinDigits   = 21
	saltMinUpper    = 22
	saltMinLower    = 21
	bootstrapLength = 32
	bootstrapDigits = 10
	bootstrapUpper  = 11
	bootstrapLower  = 11
)

// GeneratePassword returns a random printable string of exactly length
// characters containing at least the given number of digits, uppercase, and
// lowercase letters; remaining positions are drawn from the combined letter
// alphabet. The result is shuffled so category runs don't leak position
// information. Infeasible minimums are a contract violation.
func GeneratePassword(length, digits, upper, lower int) (string, error) {
	if length <= 0 || digits < 0 || upper < 0 || lower < 0 {
		return "", oops.Code("AUTH_PASSWORD_CONSTRAINTS").
			With("length", length).
			Errorf("password constraints must be non-negative with positive length")
	}
	if digits+upper+lower > length {
		return "", oops.Code("AUTH_PASSWORD_CONSTRAINTS").
			With("length", length).
			With("digits", digits).
			With("upper", upper).
			With("lower", lower).
			Errorf("minimum category counts exceed password length")
	}

	letters := passwordLowercase + passwordUppercase

	chars := make([]byte, 0, length)
	var err error
	if chars, err = appendRandom(chars, passwordUppercase, upper); err != nil {
		return "", err
	}
	if chars, err = appendRandom(chars, passwordLowercase, lower); err != nil {
		return "", err
	}
	if chars, err = appendRandom(chars, passwordDigits, digits); err != nil {
		return "", err
	}
	if chars, err = appendRandom(chars, letters, length-digits-upper-lower); err != nil {
		return "", err
	}

	if err := shuffle(chars); err != nil {
		return "", err
	}
	return string(chars), nil
}

// GenerateSalt returns a fresh account salt.
func GenerateSalt() (string, error) {
	return GeneratePassword(saltLength, saltMinDigits, saltMinUpper, saltMinLower)
}

// GenerateBootstrapPassword returns the one-time superadmin password minted
// when the account store is first created.
func GenerateBootstrapPassword() (string, error) {
	return GeneratePassword(bootstrapLength, bootstrapDigits, bootstrapUpper, bootstrapLower)
}

func appendRandom(dst []byte, alphabet string, n int) ([]byte, error) {
	for range n {
		i, err := randIndex(len(alphabet))
		if err != nil {
			return nil, err
		}
		dst = append(dst, alphabet[i])
	}
	return dst, nil
}

// shuffle is a Fisher-Yates shuffle over crypto/rand.
func shuffle(chars []byte) error {
	for i := len(chars) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return err
		}
		chars[i], chars[j] = chars[j], chars[i]
	}
	return nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, oops.Code("AUTH_ENTROPY_FAILED").Wrap(err)
	}
	return int(v.Int64()), nil
}
