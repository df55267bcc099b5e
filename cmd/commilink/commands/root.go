package commands

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sempicanha/commilink/internal/client"
)

var (
	relayURL string
	name     string
	debug    bool
)

// Execute runs the client CLI.
func Execute() error {
	root := &cobra.Command{
		Use:   "commilink",
		Short: "End-to-end encrypted chat over a commilink relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = fmt.Sprintf("client-%03d", rand.Intn(1000))
			}
			log, err := newLogger(debug)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runChat(cmd.Context(), client.RelayURL(relayURL), name, log)
		},
	}

	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay URL (default $COMMILINK_RELAY or "+client.DefaultRelay+")")
	root.PersistentFlags().StringVarP(&name, "name", "n", "", "display name")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")
	return root.Execute()
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
