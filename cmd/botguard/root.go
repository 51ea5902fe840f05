package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/botguard/config"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "botguard",
		Short: "Admission control, retries and caching for a multi-tenant sales bot",
		Long: `botguard sits between the bot transport and the language model providers.

Every inbound message passes a per-user sliding-window admission check,
localized texts and tenants are served from in-memory caches, and
upstream calls are retried with exponential backoff.

Configuration is read from --config (YAML) and BOTGUARD_* environment
variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads, validates and resolves the configuration.
func (o *rootOptions) load(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolveSecrets(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}
