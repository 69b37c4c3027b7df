package docstore

import (
	"encoding/base32"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const setIDDigestSize = 8

var setIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// SetIDPattern matches every id GenerateSetID can produce. Set ids double as
// collection name suffixes, so the alphabet stays lowercase alphanumeric.
var SetIDPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// GenerateSetID returns a short URL-safe identifier: 128 random bits hashed
// to an 8-byte BLAKE2b digest, base32 encoded without padding, lowercased.
func GenerateSetID() (string, error) {
	h, err := blake2b.New(setIDDigestSize, nil)
	if err != nil {
		return "", fmt.Errorf("new digest: %w", err)
	}
	u := uuid.New()
	h.Write(u[:])
	return strings.ToLower(setIDEncoding.EncodeToString(h.Sum(nil))), nil
}
