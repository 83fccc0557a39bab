package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/docflow/internal/config"
	"github.com/syntrixbase/docflow/internal/identity"
	"github.com/syntrixbase/docflow/pkg/model"
)

func newTokenCmd(configDir *string) *cobra.Command {
	var (
		user     string
		restrict []string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with the configured secret",
		Example: `  docflow token --user ada
  docflow token --user ada --restrict shop:orders,invoices --restrict blog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			restrictions, err := parseRestrictions(restrict)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(*configDir)
			if err != nil {
				return err
			}
			if cfg.Identity.Secret == "" {
				return errors.New("identity.secret is not configured")
			}
			tokens, err := identity.NewTokenService(cfg.Identity)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(user, restrictions, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id carried by the token")
	cmd.Flags().StringArrayVarP(&restrict, "restrict", "r", nil, "allowed index and collections, as index or index:col1,col2 (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default identity.token_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// parseRestrictions reads "index" or "index:col1,col2" entries.
func parseRestrictions(entries []string) ([]model.PolicyRestriction, error) {
	var out []model.PolicyRestriction
	for _, entry := range entries {
		index, cols, _ := strings.Cut(entry, ":")
		index = strings.TrimSpace(index)
		if index == "" {
			return nil, fmt.Errorf("invalid restriction %q: missing index", entry)
		}
		r := model.PolicyRestriction{Index: index}
		for _, c := range strings.Split(cols, ",") {
			if c = strings.TrimSpace(c); c != "" {
				r.Collections = append(r.Collections, c)
			}
		}
		out = append(out, r)
	}
	return out, nil
}
