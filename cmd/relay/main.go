package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sempicanha/commilink/internal/relay"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configFile string
		listen     string
		snapshot   string
		pendingCap int
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Store-and-forward relay for end-to-end-encrypted messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := relay.DefaultConfig()
			if configFile != "" {
				if err := cfg.LoadFile(configFile); err != nil {
					return err
				}
			}
			cfg.LoadEnv()
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("snapshot") {
				cfg.Snapshot = snapshot
			}
			if cmd.Flags().Changed("pending-cap") {
				cfg.PendingCap = pendingCap
			}

			log, err := newLogger(debug)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := relay.NewServer(cfg, log)
			if err := srv.Run(ctx); err != nil {
				log.Error("relay failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "TOML config file")
	cmd.Flags().StringVar(&listen, "listen", relay.DefaultConfig().Listen, "listen address")
	cmd.Flags().StringVar(&snapshot, "snapshot", relay.DefaultConfig().Snapshot, "state snapshot file")
	cmd.Flags().IntVar(&pendingCap, "pending-cap", 0, "max queued messages per identity (0 = unbounded)")
	cmd.Flags().BoolVar(&debug, "debug", false, "verbose logging")
	return cmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
