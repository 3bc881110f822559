package main

import (
	"fmt"
	"os"

	"mercurial/config"

	"github.com/spf13/cobra"
)

const (
	Version = "v0.1.0"
	License = "Apache-2.0"
)

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "mercurial",
		Short: "Streaming chat relay that saves the code it writes",
		Long: `Mercurial relays your messages to a language model, streams the reply
as it is generated and, in a programming mode, writes every fenced code
block in the reply to its own file as soon as the block is complete.

Modes:
  general   conversation; start a message with "code" to save its blocks
  c         replies in C, code saved as .c
  python    replies in Python, code saved as .py
  java      replies in Java, code saved as .java

Configuration lives in ~/.config/mercurial/settings.toml and
<data_dir>/config.toml; MERCURIAL_* environment variables and a .env
file in the working directory override it.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			config.InitDebugLog(cfg.DataDir())
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		chatCmd(),
		modesCmd(),
		artifactsCmd(),
		pingCmd(),
		modelsCmd(),
		providerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
