package keys

import (
	"regexp"
	"testing"
)

var keyFormatRe = regexp.MustCompile(`^([A-HJ-NP-Z2-9]{5}-){4}[A-HJ-NP-Z2-9]{5}$`)

func TestGenerateKeyFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		key, err := GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		if !keyFormatRe.MatchString(key) {
			t.Fatalf("key %q does not match expected format", key)
		}
	}
}

func TestGenerateKeyIsNotConstant(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		key, err := GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q in 20 draws", key)
		}
		seen[key] = true
	}
}
