package textfile

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	accountsFile      = "accounts.txt"
	productFilePrefix = "products_"
	productFileSuffix = ".txt"

	maxFileKeyLength = 100
	hashSeparator    = "~"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// fileKey maps a username to the file-name component of its product file.
// Usernames are matched case-insensitively, so the key is derived from the
// lowercased name. When sanitizing alters the name, a hash suffix keeps
// distinct usernames from sharing a file. The suffix separator is a
// character unsafeFileChars always rewrites, so no typed username can
// produce a suffixed key.
func fileKey(username string) string {
	lower := strings.ToLower(strings.TrimSpace(username))
	key := unsafeFileChars.ReplaceAllString(lower, "_")
	if len(key) > maxFileKeyLength {
		key = key[:maxFileKeyLength]
	}
	if key != lower {
		sum := sha256.Sum256([]byte(lower))
		key += hashSeparator + hex.EncodeToString(sum[:4])
	}
	return key
}

// productFileName returns the product file name for username.
func productFileName(username string) string {
	return productFilePrefix + fileKey(username) + productFileSuffix
}
