package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentkernel/flow"
)

var errNoModel = errors.New("no model configured: set DEFAULT_MODEL_PROVIDER and its credential")

func (a *app) chatCommand() *cobra.Command {
	var (
		threadID string
		reset    bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the reasoning loop on the console",
		Long: `Start an interactive session with the tool-calling reasoning loop.
The conversation is checkpointed under the given thread id, so a session can
be resumed later when a CHECKPOINT_PATH is configured. Type "exit" to quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := a.newKernel(a.cfg)
			if err != nil {
				return err
			}
			defer k.Close()

			loop := k.Loop()
			if loop == nil {
				return errNoModel
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if reset {
				if err := loop.Reset(ctx, threadID); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			return loop.Run(ctx, threadID, flow.ReaderInput(cmd.InOrStdin(), out), func(res flow.TurnResult) {
				if len(res.ToolCalls) > 0 {
					fmt.Fprintf(out, "[tools: %s]\n", strings.Join(res.ToolCalls, ", "))
				}
				if res.State == flow.StateTerminated {
					fmt.Fprintln(out, "Goodbye.")
				}
			})
		},
	}
	cmd.Flags().StringVarP(&threadID, "thread", "t", "default", "conversation thread id")
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the thread history before starting")
	return cmd
}
