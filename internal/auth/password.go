package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Secrets (gateway API keys and the admin password) are stored as
// argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<hash>, base64 without
// padding.
const hashScheme = "argon2id"

var (
	errEmptySecret   = errors.New("secret required")
	errInvalidFormat = errors.New("invalid hash format")
)

type argonParams struct {
	memory  uint32
	passes  uint32
	lanes   uint8
	saltLen int
	keyLen  uint32
}

var defaultParams = argonParams{memory: 64 * 1024, passes: 3, lanes: 2, saltLen: 16, keyLen: 32}

type encodedHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func (h encodedHash) String() string {
	return fmt.Sprintf("%s$v=%d$m=%d,t=%d,p=%d$%s$%s", hashScheme, argon2.Version,
		h.params.memory, h.params.passes, h.params.lanes,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key))
}

func parseHash(encoded string) (encodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != hashScheme {
		return encodedHash{}, errInvalidFormat
	}
	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil || version != argon2.Version {
		return encodedHash{}, fmt.Errorf("%w: unsupported version %q", errInvalidFormat, parts[1])
	}
	var h encodedHash
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &h.params.memory, &h.params.passes, &h.params.lanes); err != nil {
		return encodedHash{}, fmt.Errorf("parse params: %w", err)
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[3]); err != nil {
		return encodedHash{}, fmt.Errorf("decode salt: %w", err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return encodedHash{}, fmt.Errorf("decode hash: %w", err)
	}
	if len(h.key) == 0 {
		return encodedHash{}, errInvalidFormat
	}
	h.params.saltLen = len(h.salt)
	h.params.keyLen = uint32(len(h.key))
	return h, nil
}

// HashPassword returns an encoded argon2id hash of secret.
func HashPassword(secret string) (string, error) {
	if secret == "" {
		return "", errEmptySecret
	}
	p := defaultParams
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	h := encodedHash{
		params: p,
		salt:   salt,
		key:    argon2.IDKey([]byte(secret), salt, p.passes, p.memory, p.lanes, p.keyLen),
	}
	return h.String(), nil
}

// VerifyPassword compares secret against an encoded hash using the
// parameters stored in the hash.
func VerifyPassword(secret, encoded string) (bool, error) {
	if secret == "" || encoded == "" {
		return false, errEmptySecret
	}
	h, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	p := h.params
	calculated := argon2.IDKey([]byte(secret), h.salt, p.passes, p.memory, p.lanes, p.keyLen)
	return subtle.ConstantTimeCompare(calculated, h.key) == 1, nil
}

// IsPasswordHash reports whether s is a well-formed argon2id hash, which is
// how configured API keys are told apart from plaintext ones.
func IsPasswordHash(s string) bool {
	if !strings.HasPrefix(s, hashScheme+"$") {
		return false
	}
	_, err := parseHash(s)
	return err == nil
}
