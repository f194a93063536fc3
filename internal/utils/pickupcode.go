package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

// NewPickupCode returns a random 5-digit handoff code in [10000, 99999].
// Uniqueness is not guaranteed here; the order placement transaction
// checks the generated code against existing orders and regenerates on
// collision (roughly 1-in-90000 per attempt).
func NewPickupCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+10000, 10), nil
}
