package cli

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MrEthical07/goToken/internal"
	"github.com/spf13/cobra"
)

const (
	envSecret    = "GOTOKEN_SIGNING_SECRET"
	envPublicKey = "GOTOKEN_SIGNING_PUBLIC_KEY"
	envMethod    = "GOTOKEN_SIGNING_METHOD"
)

type secretOptions struct {
	method  string
	size    int
	envFile string
	force   bool
}

func newSecretCmd(g *globalOptions) *cobra.Command {
	opts := &secretOptions{}
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate signing key material",
		Long: `Generate a random HMAC secret, or an Ed25519 key pair with --method ed25519.

Keys are printed in the base64: form accepted by signing.secret. With
--env-file the values are written to that dotenv file instead; existing
values are kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			values, err := generateSecret(opts)
			if err != nil {
				return err
			}
			if opts.envFile != "" {
				if err := writeEnvFile(opts.envFile, values, opts.force); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "key material written to %s\n", opts.envFile)
				return err
			}
			fields := make(map[string]any, len(values))
			for k, v := range values {
				fields[k] = v
			}
			return printResult(cmd.OutOrStdout(), g.output, fields)
		},
	}
	cmd.Flags().StringVar(&opts.method, "method", "hs256", "signing method (hs256, hs384, hs512, ed25519)")
	cmd.Flags().IntVar(&opts.size, "bytes", 0, "HMAC secret length in bytes (default: digest size)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "dotenv file to update")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite existing values in --env-file")
	return cmd
}

func generateSecret(opts *secretOptions) (map[string]string, error) {
	method := strings.ToLower(opts.method)
	if method == "ed25519" {
		priv, pub, err := internal.NewEd25519Key()
		if err != nil {
			return nil, err
		}
		return map[string]string{
			envMethod:    method,
			envSecret:    internal.EncodeSecret(priv),
			envPublicKey: base64.StdEncoding.EncodeToString(pub),
		}, nil
	}

	size := opts.size
	if size == 0 {
		var err error
		if size, err = internal.SecretSize(method); err != nil {
			return nil, err
		}
	}
	key, err := internal.NewSecret(size)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		envMethod: method,
		envSecret: internal.EncodeSecret(key),
	}, nil
}

// writeEnvFile sets each KEY=value line in path, creating the file if needed.
func writeEnvFile(path string, values map[string]string, force bool) error {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	pending := make(map[string]string, len(values))
	for k, v := range values {
		pending[k] = v
	}

	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(existing))
	for sc.Scan() {
		line := sc.Text()
		key, _, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if v, want := pending[key]; ok && want {
			if !force {
				return fmt.Errorf("%s already set in %s; use --force to replace it", key, path)
			}
			line = key + "=" + v
			delete(pending, key)
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return err
	}
	for _, k := range []string{envMethod, envSecret, envPublicKey} {
		if v, ok := pending[k]; ok {
			out.WriteString(k + "=" + v + "\n")
		}
	}

	return os.WriteFile(path, out.Bytes(), 0o600)
}
