package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newGenerateCmd(load loader) *cobra.Command {
	var (
		save     string
		saveAuto bool
		model    string
		examples int
	)

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate one persona from a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}

			_, session, err := a.Generator.CreateSession(cmd.Context(), model, examples)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout := a.Config.AI.RequestTimeout; timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			commentary, p, err := session.Generate(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n%s", commentary, p.Render())

			if save == "" && !saveAuto {
				return nil
			}
			id, err := session.RegisterDraft(cmd.Context(), save)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nsaved as %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&save, "save", "", "register the persona under this name")
	cmd.Flags().BoolVar(&saveAuto, "save-auto", false, "register the persona under a generated name")
	cmd.Flags().StringVar(&model, "model", "", "model to use (default: configured default)")
	cmd.Flags().IntVar(&examples, "examples", 0, "number of example personas to show the model")
	return cmd
}
