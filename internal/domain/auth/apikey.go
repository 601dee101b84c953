// Package auth authenticates API clients by HMAC-SHA256 hashed API keys.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// ErrUnknownKey is returned when no API key matches the given hash.
var ErrUnknownKey = errors.New("unknown api key")

// APIKeyInfo identifies a configured API key.
type APIKeyInfo struct {
	Name    string
	KeyHash string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the hex encoded HMAC-SHA256 of key keyed with pepper.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ Repository = (*StaticKeys)(nil)

// StaticKeys is a Repository over key hashes supplied by configuration.
type StaticKeys struct {
	byHash map[string]*APIKeyInfo
}

// ParseStaticKeys builds StaticKeys from "name:hexhash" entries. An entry
// without a name is named after its position.
func ParseStaticKeys(entries []string) (*StaticKeys, error) {
	keys := &StaticKeys{byHash: make(map[string]*APIKeyInfo, len(entries))}
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, hash, ok := strings.Cut(entry, ":")
		if !ok {
			name, hash = "", entry
		}
		hash = strings.ToLower(strings.TrimSpace(hash))
		if b, err := hex.DecodeString(hash); err != nil || len(b) != sha256.Size {
			return nil, errors.Errorf("api key %d: hash must be %d hex encoded bytes", i, sha256.Size)
		}
		if name == "" {
			name = "key-" + strconv.Itoa(i)
		}
		keys.byHash[hash] = &APIKeyInfo{Name: name, KeyHash: hash}
	}
	return keys, nil
}

// Len returns the number of configured keys.
func (s *StaticKeys) Len() int {
	return len(s.byHash)
}

// FindByHash returns the key with the given hash or ErrUnknownKey.
func (s *StaticKeys) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	info, ok := s.byHash[hash]
	if !ok {
		return nil, ErrUnknownKey
	}
	return info, nil
}
