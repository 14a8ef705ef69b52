package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/spf13/cobra"
)

func newIssueCmd(g *globalOptions) *cobra.Command {
	var (
		subject string
		claims  []string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed token",
		Example: `  gotoken issue --sub user-42 --claim role=admin --claim tier=2
  GOTOKEN_TOKEN_TTL=5m gotoken issue --sub svc-batch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			values, err := parseClaims(claims)
			if err != nil {
				return err
			}
			if subject != "" {
				values[goToken.ClaimSubject] = subject
			}

			s, err := openSession(cmd.Context(), cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			token, err := s.engine.Issue(cmd.Context(), values)
			if err != nil {
				return err
			}
			if g.output == "json" {
				return printResult(cmd.OutOrStdout(), g.output, map[string]any{"token": token.String()})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token.String())
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "subject claim")
	cmd.Flags().StringArrayVar(&claims, "claim", nil, "extra claim as name=value (repeatable)")
	return cmd
}

func newDecodeCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode TOKEN",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.engine.Authenticate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), g.output, p.ToMap())
		},
	}
}

func newRefreshCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh TOKEN",
		Short: "Exchange a token for a new one and revoke the old",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			token, err := s.engine.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if g.output == "json" {
				return printResult(cmd.OutOrStdout(), g.output, map[string]any{"token": token.String()})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token.String())
			return err
		},
	}
}

func newRevokeCmd(g *globalOptions) *cobra.Command {
	var forever bool
	cmd := &cobra.Command{
		Use:   "revoke TOKEN",
		Short: "Add a token to the blacklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			if forever {
				err = s.engine.InvalidateForever(cmd.Context(), args[0])
			} else {
				err = s.engine.Invalidate(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), g.output, map[string]any{
				"revoked": true,
				"forever": forever,
			})
		},
	}
	cmd.Flags().BoolVar(&forever, "forever", false, "never expire the blacklist entry")
	return cmd
}

// parseClaims reads name=value pairs. Integers, booleans and RFC 3339
// timestamps are converted; everything else stays a string.
func parseClaims(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs)+1)
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("claim %q must be name=value", pair)
		}
		out[name] = claimValue(value)
	}
	return out, nil
}

func claimValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix()
	}
	return s
}
