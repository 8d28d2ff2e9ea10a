// Package shortcode produces opaque, URL-safe short codes.
package shortcode

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Length is the number of characters in every generated code.
const Length = 8

// Alphabet is the set of symbols a generated code is drawn from.
// It matches the nanoid default: letters, digits, '_' and '-'.
const Alphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generator produces random codes of a fixed length using a CSPRNG.
type Generator struct {
	length int
}

// NewGenerator returns a Generator producing codes of Length characters.
func NewGenerator() *Generator {
	return &Generator{length: Length}
}

// Generate returns a new random code. It never checks for collisions.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	code, err := gonanoid.Generate(Alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}
