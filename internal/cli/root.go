// Package cli defines the signchat command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hurricanerix/signchat/internal/config"
	"github.com/hurricanerix/signchat/internal/startup"
)

var (
	// ErrNotTerminal is returned by chat when stdout is not a terminal
	ErrNotTerminal = errors.New("chat needs an interactive terminal (try 'signchat send')")
	// ErrEmptyMessage is returned by send when the text is blank
	ErrEmptyMessage = errors.New("message is empty")
)

// Options holds the process dependencies of the command tree. Zero values
// select the real environment.
type Options struct {
	// EnvFiles and LookupEnv are passed to config.Load.
	EnvFiles  []string
	LookupEnv func(string) (string, bool)

	// IsTerminal reports whether fd is a terminal.
	IsTerminal func(fd int) bool
}

// NewRootCommand builds the signchat command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.IsTerminal == nil {
		opts.IsTerminal = term.IsTerminal
	}

	root := &cobra.Command{
		Use:   "signchat",
		Short: "Chat that answers every message in sign language",
		Long: `signchat turns short text messages into generated sign-language images
and shows them in a conversation thread.

Quick Start:
  signchat serve --mock        # Browser widget on http://localhost:8080
  signchat chat --mock         # Terminal widget
  signchat send "Hello"        # One message, printed to stdout

Configuration is read from a YAML file (--config), .env, SIGNCHAT_*
environment variables and flags, later sources winning.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "signchat version %s\n" .Version}}`)

	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCommand(opts),
		newChatCommand(opts),
		newSendCommand(opts),
		newVersionCommand(),
	)
	return root
}

// loadConfig resolves configuration for cmd from every source.
func loadConfig(cmd *cobra.Command, opts Options) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		Flags:     cmd.Flags(),
		EnvFiles:  opts.EnvFiles,
		LookupEnv: opts.LookupEnv,
	})
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the signchat version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "signchat version %s\n", config.Version)
		},
	}
}

// Execute runs the command tree with os.Args and returns the process exit code.
func Execute() int {
	return execute(context.Background(), NewRootCommand(Options{}), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	ctx, stop := startup.NotifyContext(ctx)
	defer stop()

	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
