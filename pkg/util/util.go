package util

import (
	"crypto/sha1"
	"encoding/hex"
	"io"

	"github.com/spf13/afero"
)

// SHA1String returns the hex SHA-1 of a string.
func SHA1String(s string) string {
	hasher := sha1.New()
	hasher.Write([]byte(s))

	return hex.EncodeToString(hasher.Sum(nil))
}

// SHA1Reader hashes a stream to completion.
func SHA1Reader(r io.Reader) (string, error) {
	hasher := sha1.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// SHA1File hashes an existing file without loading it into memory.
func SHA1File(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return SHA1Reader(f)
}
