// Package idgen produces random identifiers for credentials and mutation batches.
package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Size is the number of random bytes in an identifier.
const Size = 24

// Reader is the randomness source. Tests may replace it.
var Reader io.Reader = rand.Reader

// New returns a base64 encoding of Size random bytes. It panics if the
// randomness source fails, which crypto/rand does not do in practice.
func New() string {
	id, err := Generate(Reader)
	if err != nil {
		panic(err)
	}
	return id
}

// Generate reads Size bytes from r and returns their base64 encoding.
func Generate(r io.Reader) (string, error) {
	var buf [Size]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf[:]), nil
}
