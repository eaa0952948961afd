package mqtt

import (
	"strings"

	"github.com/google/uuid"
)

// generatedIDSuffixLen keeps generated ids at a length brokers accept.
const generatedIDSuffixLen = 16

// GenerateClientID returns prefix followed by "paho" and 16 random hex characters.
func GenerateClientID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "paho" + suffix[:generatedIDSuffixLen]
}
