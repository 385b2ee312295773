package blob

import (
	"context"
	"errors"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/config"
)

var ErrNotFound = errors.New("blob not found")

// Store holds message audio. Keys are "<session_id>/<message_id>.opus"; a
// session's objects share the "<session_id>" prefix and are removed together.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// DeletePrefix removes every object under prefix and reports whether
	// anything existed there.
	DeletePrefix(ctx context.Context, prefix string) (bool, error)
}

type backendStore interface {
	Store
}

type store struct {
	backend   backendStore
	encryptor *encryptor
}

func New(ctx context.Context, cfg config.AudioConfig) (Store, error) {
	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	enc, err := newEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return &store{backend: backend, encryptor: enc}, nil
}

func buildBackend(ctx context.Context, cfg config.AudioConfig) (backendStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "s3":
		awsCfg, err := loadS3Config(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return newS3Store(cfg.S3, awsCfg)
	default:
		return newLocalStore(cfg.Local.Directory)
	}
}

func (s *store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s.encryptor != nil {
		sealed, err := s.encryptor.seal(data)
		if err != nil {
			return err
		}
		data = sealed
	}
	return s.backend.Put(ctx, key, data, contentType)
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !isSealed(data) {
		return data, nil
	}
	if s.encryptor == nil {
		return nil, errors.New("blob is encrypted but audio.encryption_key is not set")
	}
	return s.encryptor.open(data)
}

func (s *store) DeletePrefix(ctx context.Context, prefix string) (bool, error) {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" || strings.Contains(prefix, "..") {
		return false, errors.New("invalid blob prefix")
	}
	return s.backend.DeletePrefix(ctx, prefix)
}

// MessageKey is the object key for one message's audio.
func MessageKey(sessionID, messageID string) string {
	return sessionID + "/" + messageID + ".opus"
}
