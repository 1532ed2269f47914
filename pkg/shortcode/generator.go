package shortcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Bytes above maxByte are rejected so every alphabet symbol is equally likely.
const maxByte = byte(255 - 256%len(Alphabet))

var ErrInvalidLength = errors.New("shortcode: length must be positive")

// Generate builds a random alphanumeric code of the given length from src.
// It keeps no state of its own, so any number of goroutines may call it as
// long as src is safe for concurrent reads.
func Generate(src io.Reader, length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	code := make([]byte, 0, length)
	buf := make([]byte, length+length/4+1)

	for len(code) < length {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("shortcode: read random source: %w", err)
		}
		for _, b := range buf {
			if b > maxByte {
				continue
			}
			code = append(code, Alphabet[int(b)%len(Alphabet)])
			if len(code) == length {
				break
			}
		}
	}

	return string(code), nil
}

// Random generates a code from crypto/rand.
func Random(length int) (string, error) {
	return Generate(rand.Reader, length)
}
