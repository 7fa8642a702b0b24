package keys

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// keyAlphabet omits 0/O/1/I to keep keys transcribable over the phone.
const keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	keyGroupCount = 5
	keyGroupLen   = 5
)

// GenerateKey produces a random key string in XXXXX-XXXXX-XXXXX-XXXXX-XXXXX
// form. The string is an opaque bearer identifier; uniqueness is enforced by
// the database, not by the generator.
func GenerateKey() (string, error) {
	raw := make([]byte, keyGroupCount*keyGroupLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("reading randomness: %w", err)
	}

	groups := make([]string, keyGroupCount)
	var b strings.Builder
	for i := 0; i < keyGroupCount; i++ {
		b.Reset()
		for j := 0; j < keyGroupLen; j++ {
			b.WriteByte(keyAlphabet[int(raw[i*keyGroupLen+j])%len(keyAlphabet)])
		}
		groups[i] = b.String()
	}
	return strings.Join(groups, "-"), nil
}
