package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hurricanerix/signchat/internal/logging"
	"github.com/hurricanerix/signchat/internal/startup"
	"github.com/hurricanerix/signchat/internal/tui"
)

func newChatCommand(opts Options) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.IsTerminal(int(os.Stdout.Fd())) {
				return ErrNotTerminal
			}

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			// The terminal belongs to the UI, so logs go to a file or nowhere
			var out io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				out = f
			}
			logger := logging.NewFromString(cfg.LogLevel, out)
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			controller := startup.CreateController(cfg, startup.CreateGenerator(cfg), logger)

			p := tea.NewProgram(tui.New(ctx, controller), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("terminal UI failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file while the UI runs")
	return cmd
}
