// Package codes generates the human-typed credentials used during onboarding:
// license keys and invitation codes.
package codes

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// Alphabet excludes the ambiguous glyphs 0, O, 1 and I
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// LicensePrefix starts every license key
	LicensePrefix = "GGUARD"
	// LicenseRandomLength is the length of the random license key suffix
	LicenseRandomLength = 9
	// InvitationCodeLength is the length of an invitation code
	InvitationCodeLength = 8
)

// Generator produces random strings drawn from Alphabet
type Generator interface {
	Generate(n int) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(n int) (string, error)

// Generate calls f(n)
func (f GeneratorFunc) Generate(n int) (string, error) {
	return f(n)
}

// RandomGenerator draws symbols from crypto/rand
type RandomGenerator struct{}

// NewRandomGenerator creates a new random generator
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// Generate returns n symbols from Alphabet
func (g *RandomGenerator) Generate(n int) (string, error) {
	randomBytes := make([]byte, n)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// len(Alphabet) is 32, so masking the low five bits is unbiased
	out := make([]byte, n)
	for i, b := range randomBytes {
		out[i] = Alphabet[int(b)&(len(Alphabet)-1)]
	}
	return string(out), nil
}

// LicenseKey builds a license key for the given year
// Format: GGUARD-<year>-<9 symbols>
func LicenseKey(gen Generator, year int) (string, error) {
	suffix, err := gen.Generate(LicenseRandomLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d-%s", LicensePrefix, year, suffix), nil
}

// InvitationCode builds an invitation code
func InvitationCode(gen Generator) (string, error) {
	return gen.Generate(InvitationCodeLength)
}

// Normalize uppercases and trims user input before lookup
func Normalize(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}

// IsLicenseKey reports whether s has the license key shape
func IsLicenseKey(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != LicensePrefix {
		return false
	}
	if len(parts[1]) != 4 || strings.Trim(parts[1], "0123456789") != "" {
		return false
	}
	return len(parts[2]) == LicenseRandomLength && inAlphabet(parts[2])
}

// IsInvitationCode reports whether s has the invitation code shape
func IsInvitationCode(s string) bool {
	return len(s) == InvitationCodeLength && inAlphabet(s)
}

func inAlphabet(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
