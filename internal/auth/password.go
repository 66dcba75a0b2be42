// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"math/big"
)

// Generator constants.
const (
	SaltLength               = 16
	ChallengeCodeLength      = 6
	MinSecurePasswordLength  = 8
	DefaultSecurePasswordLen = 12
)

const (
	upperChars        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars        = "abcdefghijklmnopqrstuvwxyz"
	digitChars        = "0123456789"
	generatedSpecials = "!@#$%^&*"
	alphanumeric      = upperChars + lowerChars + digitChars
	challengeChars    = upperChars + digitChars
	securePasswordSet = upperChars + lowerChars + digitChars + generatedSpecials
)

// GenerateSalt returns SaltLength characters drawn uniformly from [A-Za-z0-9].
func GenerateSalt() (string, error) {
	salt, err := randomString(alphanumeric, SaltLength)
	if err != nil {
		return "", cryptoError("generate salt").Wrap(err)
	}
	return salt, nil
}

// GenerateChallengeCode returns a short human-typeable code from [A-Z0-9].
func GenerateChallengeCode() (string, error) {
	code, err := randomString(challengeChars, ChallengeCodeLength)
	if err != nil {
		return "", cryptoError("generate challenge code").Wrap(err)
	}
	return code, nil
}

// GenerateSecurePassword returns a random password with at least one uppercase
// letter, lowercase letter, digit, and special character, in shuffled order.
// Lengths below MinSecurePasswordLength are raised to it.
func GenerateSecurePassword(length int) (string, error) {
	if length < MinSecurePasswordLength {
		length = MinSecurePasswordLength
	}

	out := make([]byte, 0, length)
	for _, class := range []string{upperChars, lowerChars, digitChars, generatedSpecials} {
		c, err := randomChar(class)
		if err != nil {
			return "", cryptoError("generate password").Wrap(err)
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := randomChar(securePasswordSet)
		if err != nil {
			return "", cryptoError("generate password").Wrap(err)
		}
		out = append(out, c)
	}

	// Fisher-Yates
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", cryptoError("shuffle password").Wrap(err)
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randomString(charset string, n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		c, err := randomChar(charset)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	return string(out), nil
}

func randomChar(charset string) (byte, error) {
	i, err := randomIndex(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[i], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
