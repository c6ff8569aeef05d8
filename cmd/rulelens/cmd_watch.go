package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rulelens/internal/engine"
	"rulelens/internal/manglesrc"
	"rulelens/internal/registry"
)

var watchCmd = &cobra.Command{
	Use:   "watch [rules-dir]",
	Short: "Watch a rules directory and log reload events",
	Long: `Registers a session over the sources in the rules directory and keeps it
up to date as .mg files change, logging every reload until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.RulesDir
		if len(args) == 1 {
			dir = args[0]
		}

		src := manglesrc.New(logger)
		reg := registry.New(logger)
		session := engine.NewSession(cfg.Engine, nil, engine.WithLogger(logger))
		reg.Register(session)

		watcher, err := registry.NewWatcher(dir, reg, src, logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(cmd.Context()); err != nil {
			return err
		}
		defer watcher.Stop()

		events, cancel := reg.Subscribe()
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		for {
			select {
			case e, ok := <-events:
				if !ok {
					return nil
				}
				logger.Info("registry event",
					zap.String("kind", string(e.Kind)),
					zap.String("session", e.SessionID),
					zap.String("path", e.Path))
			case <-sigCh:
				return nil
			case <-cmd.Context().Done():
				return nil
			}
		}
	},
}
