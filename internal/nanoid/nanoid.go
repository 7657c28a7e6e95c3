package nanoid

import "math/rand/v2"

// Alphabet is the 62-character set identifiers are drawn from. Stored object
// names already follow this convention, so it must not change.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is the identifier length used for storage object names.
const DefaultLength = 21

// Generate returns a random alphanumeric identifier of the given length.
// Non-positive lengths fall back to DefaultLength. The randomness is not
// cryptographic; these are object names, not secrets.
func Generate(length int) string {
	if length <= 0 {
		length = DefaultLength
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = Alphabet[rand.IntN(len(Alphabet))]
	}
	return string(b)
}
