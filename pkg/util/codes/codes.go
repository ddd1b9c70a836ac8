package codes

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidLength = errors.New("invalid code length")
)

// GenerateNumericCode creates a zero-padded numeric code of the given length
// from a cryptographically secure source.
func GenerateNumericCode(length int) (string, error) {
	if length < 1 {
		return "", ErrInvalidLength
	}

	max := new(big.Int)
	max.Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}

	format := fmt.Sprintf("%%0%dd", length)
	return fmt.Sprintf(format, n), nil
}
