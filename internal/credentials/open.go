package credentials

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

// Options selects and configures a store.
type Options struct {
	Driver    string
	Token     string
	TokenFile string
	RedisURL  string
	Redis     RedisConfig
}

// Open builds the store named by opts.Driver. An explicit Token always wins
// and is held in memory only, whatever the driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Token != "" {
		return NewMemoryStore(opts.Token), nil
	}

	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(""), nil
	case DriverFile:
		if opts.TokenFile == "" {
			return nil, fmt.Errorf("file credential store needs a token file path")
		}
		return NewFileStore(opts.TokenFile), nil
	case DriverRedis:
		cfg := opts.Redis
		if opts.RedisURL != "" {
			parsed, err := redis.ParseURL(opts.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("parse redis url: %w", err)
			}
			cfg.Addr = parsed.Addr
			cfg.Password = parsed.Password
			cfg.DB = parsed.DB
		}
		if cfg.Addr == "" {
			return nil, fmt.Errorf("redis credential store needs an address")
		}
		return NewRedisStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown credential driver %q", opts.Driver)
	}
}
