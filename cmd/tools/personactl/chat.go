package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd(load loader) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "chat <id>",
		Short: "Interview a saved persona; one message per line, /exit to quit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}

			info, session, err := a.Chat.CreateSession(cmd.Context(), args[0], model)
			if err != nil {
				return err
			}
			defer a.Chat.DeleteSession(cmd.Context(), info.ID)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chatting with %s (%s)\n", info.PersonaID, info.Model)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "/exit" {
					return nil
				}

				reply, err := session.StreamTurn(cmd.Context(), line)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					continue
				}
				for {
					part, recvErr := reply.Recv()
					if errors.Is(recvErr, io.EOF) {
						break
					}
					if recvErr != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "\nerror: %v\n", recvErr)
						break
					}
					fmt.Fprint(out, part)
				}
				reply.Close()
				fmt.Fprintln(out)
			}
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model to use (default: configured default)")
	return cmd
}
