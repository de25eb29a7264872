// Package roomcode generates and validates the short, human-shareable codes
// that identify sessions.
package roomcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

const (
	// Length is the number of characters in a code.
	Length = 6

	// Alphabet holds 32 symbols: A-Z and 2-9 without the look-alikes 0, O, 1, I.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// MaxAttempts bounds collision retries when reserving a code.
	MaxAttempts = 5
)

// ErrCodeExhaustion is returned when every attempt hit an existing session.
var ErrCodeExhaustion = errors.New("roomcode: could not find a free room code")

// Generator produces candidate codes.
type Generator func() (string, error)

// Generate creates a random code from Alphabet.
func Generate() (string, error) {
	b := make([]byte, Length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("roomcode: read random: %w", err)
	}
	// 256 is a multiple of 32, so masking keeps the distribution uniform
	for i := range b {
		b[i] = Alphabet[b[i]&31]
	}
	return string(b), nil
}

// Normalize trims whitespace and upper-cases user input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidFormat reports whether code is exactly Length characters of A-Z or 0-9.
func ValidFormat(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Creator is the part of the store Reserve needs.
type Creator interface {
	Create(ctx context.Context, s docstore.Session) (docstore.Session, error)
}

// Reserve creates a session under a fresh code. build receives each candidate
// code and returns the document to insert. Create's AlreadyExists check is the
// non-existence test, so two hosts can never end up with the same code.
func Reserve(
	ctx context.Context,
	store Creator,
	gen Generator,
	attempts int,
	build func(code string) docstore.Session,
) (docstore.Session, error) {
	if gen == nil {
		gen = Generate
	}
	if attempts < 1 {
		attempts = MaxAttempts
	}

	for range attempts {
		code, err := gen()
		if err != nil {
			return docstore.Session{}, err
		}
		created, err := store.Create(ctx, build(code))
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, docstore.ErrAlreadyExists) {
			return docstore.Session{}, fmt.Errorf("roomcode: create session: %w", err)
		}
	}
	return docstore.Session{}, ErrCodeExhaustion
}
