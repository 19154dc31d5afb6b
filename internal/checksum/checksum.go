// Package checksum fingerprints card content to detect changes between runs.
package checksum

import (
	"crypto/md5" //nolint:gosec // change detection, not security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Supported algorithms. MD5 matches the digests already persisted in
// existing documents.
const (
	MD5    = "md5"
	SHA256 = "sha256"
)

// Sum returns the hex-encoded digest of data.
func Sum(algo string, data []byte) (string, error) {
	switch algo {
	case MD5, "":
		h := md5.Sum(data) //nolint:gosec
		return hex.EncodeToString(h[:]), nil
	case SHA256:
		h := sha256.Sum256(data)
		return hex.EncodeToString(h[:]), nil
	default:
		return "", fmt.Errorf("checksum: unknown algorithm %q", algo)
	}
}

// Changed reports whether content with the given digest needs a sync.
func Changed(stored, digest string) bool {
	return stored != digest
}
