package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurricanerix/signchat/internal/conversation"
	"github.com/hurricanerix/signchat/internal/startup"
	"github.com/hurricanerix/signchat/internal/submission"
	"github.com/hurricanerix/signchat/internal/tui"
)

// sendOutput is the --json form of a send.
type sendOutput struct {
	Kind     submission.Kind        `json:"kind"`
	Notice   string                 `json:"notice,omitempty"`
	Messages []conversation.Message `json:"messages"`
}

func newSendCommand(opts Options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "send <text>...",
		Short: "Submit one message and print the thread",
		Long: `Submit one message through the same pipeline as the chat widgets and
print the resulting thread. Arguments are joined with spaces.

Exits non-zero when the message is rejected or generation fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := startup.CreateLogger(cfg, cmd.ErrOrStderr())
			defer func() { _ = logger.Sync() }()

			controller := startup.CreateController(cfg, startup.CreateGenerator(cfg), logger)
			res := controller.SubmitText(cmd.Context(), strings.Join(args, " "))
			if res.Kind == submission.KindIgnored {
				return ErrEmptyMessage
			}

			out := cmd.OutOrStdout()
			msgs := controller.Store().List()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(sendOutput{Kind: res.Kind, Notice: res.Notice, Messages: msgs}); err != nil {
					return fmt.Errorf("failed to encode result: %w", err)
				}
			} else if len(msgs) > 0 {
				fmt.Fprintln(out, tui.RenderThread(msgs, time.Now()))
			}

			if res.Kind.IsError() {
				return errors.New(res.Notice)
			}
			if !asJSON {
				fmt.Fprintln(out, res.Notice)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
