package password

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	upperSet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerSet = "abcdefghijkmnopqrstuvwxyz"
	digitSet = "23456789"
)

// Generate returns a random password of length runes that satisfies
// DefaultPolicy. Used for administrator-initiated creates and resets.
func Generate(length int) (string, error) {
	if length < 8 {
		return "", errors.New("password: generated length must be >= 8")
	}
	all := upperSet + lowerSet + digitSet + SpecialChars

	buf := make([]byte, 0, length)
	for _, set := range []string{upperSet, lowerSet, digitSet, SpecialChars} {
		c, err := pick(set)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates so the guaranteed classes are not always in front.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		k := int(j.Int64())
		buf[i], buf[k] = buf[k], buf[i]
	}
	return string(buf), nil
}

func pick(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}
