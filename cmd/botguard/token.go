package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/botguard/auth"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		principal string
		roles     []string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator JWT for the stats endpoint",
		Long:  `Sign an HS256 token with auth.jwt_secret for use as "Authorization: Bearer <token>".`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(cmd.Context())
			if err != nil {
				return err
			}
			authn, err := auth.NewJWTAuthenticator(cfg.JWTConfig())
			if err != nil {
				return fmt.Errorf("auth.jwt_secret: %w", err)
			}
			token, err := authn.Issue(principal, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "operator", "token subject")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleViewer}, "granted roles (viewer, admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
