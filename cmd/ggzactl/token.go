package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ggza/trivia-core/internal/config"
	"github.com/ggza/trivia-core/pkg/auth"
)

func newTokenCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Identity token helpers for local development",
	}

	var (
		username string
		role     string
		verified bool
		ttl      time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue <discord-id>",
		Short: "Sign an identity token with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			verifier, err := auth.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
			if err != nil {
				return err
			}
			claims := auth.IdentityClaims{
				Username: username,
				Verified: verified,
				Role:     role,
			}
			claims.Subject = args[0]
			if claims.Username == "" {
				claims.Username = "user_" + args[0]
			}
			token, err := verifier.Issue(claims, ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	issue.Flags().StringVar(&username, "username", "", "display name")
	issue.Flags().StringVar(&role, "role", auth.RoleUser, "user or admin")
	issue.Flags().BoolVar(&verified, "verified", true, "mark the identity as verified")
	issue.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	cmd.AddCommand(issue)
	return cmd
}
