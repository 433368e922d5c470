package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurricanerix/signchat/internal/config"
	"github.com/hurricanerix/signchat/internal/startup"
)

func newServeCommand(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser chat widget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return serve(cmd, cfg)
		},
	}
	config.BindServerFlags(cmd.Flags())
	return cmd
}

func serve(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	logger := startup.CreateLogger(cfg, cmd.ErrOrStderr())
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting signchat...")
	logger.Debug("Configuration: addr=%s, max-chars=%d, warn-threshold=%d, timeout=%s",
		cfg.Addr(), cfg.MaxChars, cfg.WarnThreshold, cfg.Timeout)

	if cfg.Mock {
		logger.Info("Using mock generator")
	} else {
		logger.Debug("Validating generation service...")
		if err := startup.ValidateGenerationService(ctx, cfg.GenerationURL, cfg.Function); err != nil {
			logger.Error("Generation service validation failed: %v", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "\nPlease ensure the generation service is running at %s\n", cfg.GenerationURL)
			fmt.Fprintf(cmd.ErrOrStderr(), "and the %q function is deployed, or run with --mock.\n\n", cfg.Function)
			return err
		}
		logger.Info("Connected to generation service at %s (function: %s)", cfg.GenerationURL, cfg.Function)
	}

	components, err := startup.InitializeAll(cfg, logger)
	if err != nil {
		return err
	}

	return startup.Run(ctx, components.WebServer, logger)
}
