// Package certid mints and checks certificate identifiers: 12 characters drawn
// from the uppercase alphanumeric alphabet.
package certid

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Length is the number of characters in a certificate identifier.
const Length = 12

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxUnbiased is the largest multiple of len(alphabet) that fits in a byte;
// random bytes at or above it are discarded.
const maxUnbiased = 256 - (256 % len(alphabet))

// Source produces candidate identifiers.
type Source interface {
	Next() (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (string, error)

// Next calls f.
func (f SourceFunc) Next() (string, error) {
	return f()
}

// RandomSource draws identifiers from a cryptographic random reader.
type RandomSource struct {
	reader io.Reader
}

// NewRandomSource returns a Source backed by crypto/rand.
func NewRandomSource() *RandomSource {
	return &RandomSource{reader: rand.Reader}
}

// Next returns a fresh identifier.
func (s *RandomSource) Next() (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length*2)
	for len(out) < Length {
		if _, err := io.ReadFull(s.reader, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}

// Valid reports whether id has the shape of a certificate identifier. It looks
// at every character regardless of where a mismatch occurs.
func Valid(id string) bool {
	ok := len(id) == Length
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			ok = false
		}
	}
	return ok
}
