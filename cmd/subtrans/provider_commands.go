package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/subtrans/internal/config"
	"github.com/GriffinCanCode/subtrans/internal/keyring"
	"github.com/GriffinCanCode/subtrans/internal/provider"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List translation providers and their credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			headers, rows, aligns := providerRows(cfg)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns, isTerminal(cmd.OutOrStdout())))
			return nil
		},
	}
}

func providerRows(cfg *config.Config) ([]string, [][]string, []columnAlignment) {
	headers := []string{"Provider", "Active", "Model", "Keys", "Primary"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	order := cfg.ProviderOrder()
	var rows [][]string
	for _, name := range provider.Names() {
		p, ok := cfg.Providers[name]
		if !ok {
			continue
		}
		keys := cfg.Keys(name)
		primary := "-"
		if len(keys) > 0 {
			primary = keyring.Mask(keys[0])
		}
		rows = append(rows, []string{name, role(order, name), p.Model, strconv.Itoa(len(keys)), primary})
	}
	return headers, rows, aligns
}

func role(order []string, name string) string {
	for i, n := range order {
		if n != name {
			continue
		}
		if i == 0 {
			return "active"
		}
		return "fallback " + strconv.Itoa(i)
	}
	return ""
}

func newSetKeyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <provider> <key>",
		Short: "Save an API key as the provider's primary credential",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			if err := store.SetCredential(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s key %s to %s\n", args[0], keyring.Mask(args[1]), store.Path())
			return nil
		},
	}
}

func newUseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "use <provider>",
		Short: "Make a provider the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			if len(store.Snapshot().Keys(strings.ToLower(args[0]))) == 0 {
				slog.Warn("provider has no api key yet", "provider", args[0])
			}
			if err := store.SetProvider(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "active provider: %s\n", store.Snapshot().Provider)
			return nil
		},
	}
}
