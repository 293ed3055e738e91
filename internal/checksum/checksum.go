package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// FileHash returns the hex sha256 of uploaded file bytes. Statement dedupe is
// keyed on (company_id, FileHash): identical bytes re-uploaded by the same
// company are rejected before parsing.
func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Matches reports whether data hashes to the expected lowercase hex digest.
func Matches(data []byte, expected string) bool {
	return expected != "" && FileHash(data) == expected
}
