// Package cli implements the gotoken command line tool.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set with -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type globalOptions struct {
	configFile string
	output     string
	verbose    bool
	retries    uint64
}

// NewRootCommand returns the gotoken command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "gotoken",
		Short: "gotoken - JWT lifecycle tool",
		Long: `gotoken issues, inspects, refreshes and revokes compact JWTs using
the same engine applications embed.

Configuration is read from --config (YAML, JSON or TOML) and GOTOKEN_*
environment variables. The blacklist backend is chosen by store.driver:
  - memory:   process local, lost on exit
  - redis:    store.dsn is a redis:// URL
  - postgres: store.dsn is a pgx connection string
  - surreal:  store.dsn is ws://user:pass@host:port/namespace/database`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging to stderr")
	root.PersistentFlags().Uint64Var(&opts.retries, "connect-retries", 5, "store connection attempts before giving up")

	root.AddCommand(
		newSecretCmd(opts),
		newIssueCmd(opts),
		newDecodeCmd(opts),
		newRefreshCmd(opts),
		newRevokeCmd(opts),
		newLoadtestCmd(),
		newVersionCmd(opts),
	)
	return root
}

// Execute runs the command tree with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *globalOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
