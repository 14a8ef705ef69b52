package cli

import (
	"context"
	"fmt"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/config"
	"github.com/spf13/cobra"
)

// session is an Engine plus the resources it was built on.
type session struct {
	engine  *goToken.Engine
	loaded  *config.Loaded
	backend *backend
}

func (s *session) Close() {
	s.engine.Close()
	s.backend.close()
}

func openSession(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*session, error) {
	loaded, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	logger := opts.logger(cmd.ErrOrStderr())

	be, err := openBackend(ctx, loaded.File.Store, loaded.Config.Refresh.RedisPrefix, opts.retries, logger)
	if err != nil {
		return nil, err
	}

	b := goToken.New().
		WithConfig(loaded.Config).
		WithStore(be.store).
		WithLogger(logger)
	if be.redis != nil {
		b = b.WithRedis(be.redis)
	}
	if loaded.Config.Audit.Enabled {
		b = b.WithAuditSink(goToken.NewSlogSink(logger))
	}

	engine, err := b.Build()
	if err != nil {
		be.close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return &session{engine: engine, loaded: loaded, backend: be}, nil
}
