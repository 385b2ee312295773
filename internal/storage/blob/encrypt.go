package blob

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// sealedMagic prefixes AES-GCM payloads so reads can tell them apart from
// objects written before a key was configured.
var sealedMagic = []byte("OVGE1")

type encryptor struct {
	gcm cipher.AEAD
}

func newEncryptor(raw string) (*encryptor, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("audio.encryption_key must be base64: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("audio.encryption_key must be 16/24/32 bytes after decoding")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sealedMagic)+len(nonce)+len(plain)+e.gcm.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, nonce...)
	return e.gcm.Seal(out, nonce, plain, nil), nil
}

func (e *encryptor) open(data []byte) ([]byte, error) {
	data = data[len(sealedMagic):]
	n := e.gcm.NonceSize()
	if len(data) < n {
		return nil, errors.New("encrypted payload too short")
	}
	plain, err := e.gcm.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt blob: %w", err)
	}
	return plain, nil
}

func isSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealedMagic)
}
