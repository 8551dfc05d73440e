// Package idgen generates opaque stack identifiers backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set of a stack id. Lowercase only, so ids are safe
// in directory names and engine stack names.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of characters in a stack id.
const Length = 10

// StackID returns a new random stack id.
func StackID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id, nil
}
