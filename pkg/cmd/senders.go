package cmd

import (
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/cadencehq/cadence/pkg/channel"
	"github.com/cadencehq/cadence/pkg/channel/email"
	"github.com/cadencehq/cadence/pkg/channel/whatsapp"
	"github.com/cadencehq/cadence/pkg/runlock"
)

// NewSenderRegistry builds the channel registry with every supported sender.
func NewSenderRegistry(logger *slog.Logger) *channel.Registry {
	registry := channel.NewRegistry(logger)

	for _, sender := range []channel.Sender{
		whatsapp.NewSender(logger),
		email.NewSender(logger),
	} {
		err := registry.Register(sender)
		if err != nil {
			panic(fmt.Errorf("failed to register %s sender: %w", sender.Channel(), err))
		}
	}

	return registry
}

// NewRunLock builds the Redis-backed run lock, or nil when no Redis URL is
// configured.
func NewRunLock(redisURL string, logger *slog.Logger) *runlock.Lock {
	if redisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("invalid redis URL: %w", err))
	}

	client := redis.NewClient(opts)

	return runlock.New(client, "cadence:run", runlock.DefaultTTL, logger)
}
