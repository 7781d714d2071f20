// Package sluggen generates random short codes and validates caller-chosen aliases.
// Generators are safe for concurrent use.
package sluggen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

const (
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// MinAliasLength and MaxAliasLength bound a caller-supplied alias.
	MinAliasLength = 3
	MaxAliasLength = 20

	// bytes at or above this value are rejected to keep the alphabet uniform.
	maxUnbiased = 256 - 256%len(alphabet)
)

var (
	ErrAliasLength   = fmt.Errorf("alias must be %d-%d characters", MinAliasLength, MaxAliasLength)
	ErrAliasCharset  = errors.New("alias must contain only letters and digits")
	ErrAliasReserved = errors.New("alias is reserved")
)

// reserved holds path segments the HTTP surface routes on; a link under one of
// them would be unreachable.
var reserved = map[string]struct{}{
	"search":  {},
	"expired": {},
}

// Generator produces random short codes.
type Generator interface {
	Generate(length int) (string, error)
}

type base62 struct{}

// NewBase62 returns a Generator drawing from [0-9A-Za-z].
func NewBase62() Generator {
	return base62{}
}

func (base62) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4+1)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// IsReserved reports whether code collides with a reserved route word.
// The comparison ignores case.
func IsReserved(code string) bool {
	_, ok := reserved[strings.ToLower(code)]
	return ok
}

// ValidateAlias checks a caller-chosen alias: 3-20 ASCII letters or digits and
// not a reserved word.
func ValidateAlias(alias string) error {
	if len(alias) < MinAliasLength || len(alias) > MaxAliasLength {
		return ErrAliasLength
	}
	for i := 0; i < len(alias); i++ {
		c := alias[i]
		isDigit := c >= '0' && c <= '9'
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !isDigit && !isLetter {
			return ErrAliasCharset
		}
	}
	if IsReserved(alias) {
		return ErrAliasReserved
	}
	return nil
}
