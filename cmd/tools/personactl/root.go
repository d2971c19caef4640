package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/persona-lab/backend/internal/app"
	"github.com/zhouzirui/persona-lab/backend/internal/config"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
)

type (
	configFunc func() (*config.Config, error)
	wireFunc   func(ctx context.Context, cfg *config.Config) (*app.App, error)
)

// newRootCmd builds the command tree. list, show and models only read the
// configuration and the persona directory; generate and chat wire the full
// app and therefore need model credentials.
func newRootCmd(loadConfig configFunc, wire wireFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "personactl",
		Short:         "Generate, inspect and interview synthetic personas",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	settings := func() (*config.Config, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	load := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := settings()
		if err != nil {
			return nil, err
		}
		a, err := wire(cmd.Context(), cfg)
		if err != nil {
			return nil, fmt.Errorf("initialize: %w", err)
		}
		return a, nil
	}

	rootCmd.AddCommand(
		newListCmd(settings),
		newShowCmd(settings),
		newModelsCmd(settings),
		newGenerateCmd(load),
		newChatCmd(load),
	)
	return rootCmd
}

type loader func(cmd *cobra.Command) (*app.App, error)

func openStore(settings configFunc) (*persona.FileStore, error) {
	cfg, err := settings()
	if err != nil {
		return nil, err
	}
	return persona.NewFileStore(cfg.Persona.Dir), nil
}

func newListCmd(settings configFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved persona identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			ids, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newShowCmd(settings configFunc) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			p, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), p.Render())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of key: value lines")
	return cmd
}

func newModelsCmd(settings configFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List selectable models; the default is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := settings()
			if err != nil {
				return err
			}
			for _, name := range cfg.AI.Models {
				marker := " "
				if name == cfg.AI.DefaultModel {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}
