// Package shortid generates the public ids handed out for notes.
package shortid

import (
	"fmt"
	"strings"

	nanoid "github.com/jaevor/go-nanoid"
)

// DefaultLength is the length of generated note ids.
const DefaultLength = 10

// Alphabet is the URL-safe nanoid alphabet.
const Alphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generator returns a new random id on each call.
type Generator func() string

// New returns a Generator producing ids of the given length.
func New(length int) (Generator, error) {
	if length <= 0 {
		length = DefaultLength
	}
	gen, err := nanoid.Standard(length)
	if err != nil {
		return nil, fmt.Errorf("nanoid generator: %w", err)
	}
	return Generator(gen), nil
}

// Valid reports whether id could have been produced by a Generator.
func Valid(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}
	return true
}
