package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/botguard/pipeline"
	"github.com/jonwraymond/botguard/store"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var (
		companyName string
		botToken    string
		language    string
		skipSeed    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and seed interface texts",
		Long: `Create the sqlite schema if it does not exist and insert the stock
English and Russian interface texts. Existing texts are left untouched.

With --company and --bot-token a company is registered for that bot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := root.load(ctx)
			if err != nil {
				return err
			}

			st, err := store.Open(ctx, cfg.StoreConfig())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schema ready: %s\n", cfg.Store.DSN)

			if !skipSeed {
				n, err := st.SeedTexts(ctx, pipeline.DefaultTexts())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "seeded %d interface texts\n", n)
			}

			if botToken != "" {
				id, err := st.CreateCompany(ctx, store.Company{
					Name:            companyName,
					Token:           botToken,
					DefaultLanguage: language,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "registered company %q with id %d\n", companyName, id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&companyName, "company", "", "company name to register")
	cmd.Flags().StringVar(&botToken, "bot-token", "", "bot token of the company")
	cmd.Flags().StringVar(&language, "language", pipeline.DefaultLanguage, "default language of the company")
	cmd.Flags().BoolVar(&skipSeed, "no-seed", false, "do not insert interface texts")
	cmd.MarkFlagsRequiredTogether("company", "bot-token")
	return cmd
}
