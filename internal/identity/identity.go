// Package identity computes deterministic record identities and merges
// candidate records into the stored corpus.
package identity

import (
	"encoding/hex"
	"errors"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Errors returned by identity computation.
var (
	// ErrUnidentifiable indicates the candidate has no normalized title,
	// so no identity can be computed. Such candidates are reported and
	// skipped, never retried.
	ErrUnidentifiable = errors.New("candidate has no usable title")
)

// identityBytes is the truncated digest length. 16 bytes of BLAKE2b is
// plenty of collision resistance for a paper corpus.
const identityBytes = 16

// Compute derives the Identity for a (title, year) pair: a BLAKE2b hash of
// the normalized title and publication year. Two records with the same
// identity are the same logical paper and must be merged, never duplicated.
func Compute(title string, year int) (string, error) {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return "", ErrUnidentifiable
	}

	sum := blake2b.Sum256([]byte(normalized + "\n" + strconv.Itoa(year)))
	return hex.EncodeToString(sum[:identityBytes]), nil
}
