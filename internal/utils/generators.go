package utils

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const (
	numberLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numberDigits  = "0123456789"
)

// GenerateID returns a new random identifier for persisted entities.
func GenerateID() string {
	return uuid.New().String()
}

// GenerateTicketNumber returns a short human-readable number made of two
// uppercase letters followed by two digits, e.g. "KQ07".
func GenerateTicketNumber() (string, error) {
	out := make([]byte, 0, 4)
	for i := 0; i < 2; i++ {
		c, err := pick(numberLetters)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for i := 0; i < 2; i++ {
		c, err := pick(numberDigits)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	return string(out), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
