package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ncecere/open_voice_gateway/internal/config"
)

const pingTimeout = 3 * time.Second

// New builds a client from a redis:// or rediss:// URL, a unix:// socket
// or a bare host:port.
func New(cfg config.RedisConfig) (*redis.Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("redis url is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		if strings.Contains(url, "://") {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = &redis.Options{Addr: url}
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	client.AddHook(skipMaintNotifications{})
	return client, nil
}

// Ping verifies connectivity. A nil client means redis is not configured.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// skipMaintNotifications drops the CLIENT MAINT_NOTIFICATIONS handshake,
// which older servers and miniredis reject.
type skipMaintNotifications struct{}

func isMaintNotifications(cmd redis.Cmder) bool {
	args := cmd.Args()
	if len(args) < 2 || !strings.EqualFold(cmd.FullName(), "client") {
		return false
	}
	name, ok := args[1].(string)
	return ok && strings.EqualFold(name, "maint_notifications")
}

func (skipMaintNotifications) DialHook(next redis.DialHook) redis.DialHook { return next }

func (skipMaintNotifications) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if isMaintNotifications(cmd) {
			return nil
		}
		return next(ctx, cmd)
	}
}

func (skipMaintNotifications) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		kept := cmds[:0]
		for _, cmd := range cmds {
			if !isMaintNotifications(cmd) {
				kept = append(kept, cmd)
			}
		}
		return next(ctx, kept)
	}
}
