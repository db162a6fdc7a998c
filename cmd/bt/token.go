package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/config"
	"golang.org/x/term"
)

// readPassword reads the signing secret without echo.
var readPassword = term.ReadPassword

type tokenOpts struct {
	Subject string
	Email   string
	Name    string
	Role    string
	TTL     time.Duration
}

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		opts       tokenOpts
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for local testing",
		Long: `Signs an HS256 bearer token with the configured server.jwt_secret. When no
secret is configured, prompts for one on the terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			secret := cfg.Server.JWTSecret
			if secret == "" {
				if secret, err = promptSecret(cmd); err != nil {
					return err
				}
			}
			tok, err := mintToken(secret, opts, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&opts.Subject, "sub", "", "user id (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name claim")
	cmd.Flags().StringVar(&opts.Role, "role", "", "role for a first sign-in (student, teacher, admin)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("sub")
	return cmd
}

func mintToken(secret string, opts tokenOpts, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if opts.Subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	claims := jwt.MapClaims{
		"sub": opts.Subject,
		"iat": now.Unix(),
		"exp": now.Add(opts.TTL).Unix(),
	}
	if opts.Email != "" {
		claims["email"] = opts.Email
	}
	if opts.Name != "" {
		claims["name"] = opts.Name
	}
	if opts.Role != "" {
		claims["role"] = opts.Role
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func promptSecret(cmd *cobra.Command) (string, error) {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", fmt.Errorf("server.jwt_secret is not configured; set BEARTANK_JWT_SECRET")
	}
	fmt.Fprint(cmd.OutOrStdout(), "JWT secret: ")
	b, err := readPassword(int(f.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
