package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

const (
	apiKeySecretLength = 40
	apiKeyPrefix       = "ovg-"
	alphabet           = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateAPIKey returns a new random API key.
func GenerateAPIKey() (string, error) {
	secret, err := randomString(apiKeySecretLength)
	if err != nil {
		return "", err
	}
	return apiKeyPrefix + secret, nil
}

func randomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// Fingerprint is a short stable identifier for a key, safe to log and to
// use as a rate-limit bucket.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}

// KeySet validates bearer API keys against configured entries, each either a
// plaintext key or an argon2id hash. An empty set disables auth.
type KeySet struct {
	plain  [][]byte
	hashes []string

	// verified caches fingerprints of keys that matched a hash, so argon2
	// runs once per key rather than once per request.
	verified sync.Map
}

func NewKeySet(entries []string) *KeySet {
	ks := &KeySet{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case IsPasswordHash(entry):
			ks.hashes = append(ks.hashes, entry)
		default:
			ks.plain = append(ks.plain, []byte(entry))
		}
	}
	return ks
}

// Enabled reports whether any key is configured.
func (ks *KeySet) Enabled() bool {
	return ks != nil && (len(ks.plain) > 0 || len(ks.hashes) > 0)
}

// Authenticate returns the key's fingerprint when it matches a configured entry.
func (ks *KeySet) Authenticate(key string) (string, bool) {
	if !ks.Enabled() || key == "" {
		return "", false
	}
	candidate := []byte(key)
	for _, p := range ks.plain {
		if subtle.ConstantTimeCompare(p, candidate) == 1 {
			return Fingerprint(key), true
		}
	}

	fp := Fingerprint(key)
	if cached, ok := ks.verified.Load(fp); ok && subtle.ConstantTimeCompare(cached.([]byte), sha256Sum(key)) == 1 {
		return fp, true
	}
	for _, h := range ks.hashes {
		if ok, err := VerifyPassword(key, h); err == nil && ok {
			ks.verified.Store(fp, sha256Sum(key))
			return fp, true
		}
	}
	return "", false
}

func sha256Sum(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}
