package josekeys

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/crypto/hkdf"
)

var (
	// A128KW, A256GCMKW, ...
	keyWrapAlgPattern = regexp.MustCompile(`^A(\d{3})(?:GCM)?KW$`)
	// A128GCM, A128CBC-HS256, ...
	contentEncAlgPattern = regexp.MustCompile(`^A(\d{3})(?:GCM|CBC-HS(\d{3}))$`)
)

// SecretKey turns a shared secret into a symmetric key for alg.
//
// Key-wrapping algorithms (A128KW, A256GCMKW, ...) get a key derived to the
// size in the name. Content-encryption algorithms get a key derived to the
// CBC-HS digest size when present (A128CBC-HS256 -> 256 bits), otherwise the
// AES size (A192GCM -> 192 bits). Any other alg, including "", yields the
// secret itself as an oct key.
//
// An empty secret fails with ErrEmptySecret for every alg.
func SecretKey(secret []byte, alg string) (jwk.Key, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if m := keyWrapAlgPattern.FindStringSubmatch(alg); m != nil {
		return DeriveKey(secret, mustAtoi(m[1]))
	}
	if m := contentEncAlgPattern.FindStringSubmatch(alg); m != nil {
		size := m[1]
		if m[2] != "" {
			size = m[2]
		}
		return DeriveKey(secret, mustAtoi(size))
	}
	return octKey(bytes.Clone(secret))
}

// DeriveKey derives a bits-long oct key from secret with HKDF-SHA256.
// bits must be one of 128, 192, 256, 384 or 512, and secret must not be empty.
func DeriveKey(secret []byte, bits int) (jwk.Key, error) {
	switch bits {
	case 128, 192, 256, 384, 512:
	default:
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedKeySize, bits)
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	octets := make([]byte, bits/8)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, nil), octets); err != nil {
		return nil, fmt.Errorf("derive %d-bit key: %w", bits, err)
	}
	return octKey(octets)
}

func octKey(octets []byte) (jwk.Key, error) {
	key, err := jwk.FromRaw(octets)
	if err != nil {
		return nil, fmt.Errorf("build oct key: %w", err)
	}
	return key, nil
}

// mustAtoi parses a string the patterns above already restricted to three digits.
func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(err)
	}
	return n
}
