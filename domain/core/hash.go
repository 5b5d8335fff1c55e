package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, enough to tell equation sets apart in logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// EquationSetHash fingerprints a loaded equation set
type EquationSetHash Hash

func (h EquationSetHash) String() string { return Hash(h).String() }
func (h EquationSetHash) Short() string  { return Hash(h).Short() }

// ComputeEquationSetHash hashes label -> canonical equation text, independent of map order
func ComputeEquationSetHash(equations map[string]string) EquationSetHash {
	keys := make([]string, 0, len(equations))
	for k := range equations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("=%s;", equations[key]))
	}

	return EquationSetHash(NewHash([]byte(data.String())))
}
