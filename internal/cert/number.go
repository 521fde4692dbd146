package cert

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

// NewNumber returns a public certificate number. 100 bits from
// crypto/rand keep it unguessable; the grouping only aids transcription.
// Format: CL-XXXXX-XXXXX-XXXXX-XXXXX.
func NewNumber() (string, error) {
	raw := make([]byte, 13) // 13 bytes -> 20+ base32 chars
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("certificate number entropy: %w", err)
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
	enc = enc[:20]
	var b strings.Builder
	b.WriteString("CL")
	for i := 0; i < 20; i += 5 {
		b.WriteByte('-')
		b.WriteString(enc[i : i+5])
	}
	return b.String(), nil
}
