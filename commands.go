package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"mercurial/app"
	"mercurial/config"
	"mercurial/modes"
	"mercurial/provider"
	"mercurial/server"
	"mercurial/storage"
	"mercurial/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/SSE API",
		Long: `Serve the chat API. POST /chat streams a reply as Server-Sent Events;
see /sessions for independent conversations.

Examples:
  mercurial serve
  mercurial serve --listen 0.0.0.0:5000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				cfg.Listen = listen
			}
			a, err := app.New(cfg, Version)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(a.Sessions, a.Relay, a.Store, cfg.Listen)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Mercurial %s listening on http://%s (provider %s, model %s, code dir %s)\n",
				Version, cfg.Listen, cfg.ActiveProvider().ID, a.Provider.GetModel(), a.Persister.Dir())
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "address to listen on (default from config)")
	return cmd
}

func chatCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Long: `Start an interactive chat in the terminal.

Interactive commands:
  /mode <id>      switch mode (general, c, python, java)
  /modes          list modes
  /model [name]   show or set the model
  /clear          clear the conversation
  /reset          clear and restore the default mode
  /quit           exit
  Ctrl+C          cancel the reply being streamed
  Ctrl+D          exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cfg, Version)
			if err != nil {
				return err
			}
			defer a.Close()

			console := app.NewConsole(config.GetHistoryFilePath(cfg.DataDir()))
			defer console.Close()

			repl, err := a.NewREPL(console, os.Stdout, terminalWidth(), mode)
			if err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt)
			defer signal.Stop(sigChan)
			go func() {
				for range sigChan {
					repl.Interrupt()
				}
			}()

			return repl.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "initial mode (default from config)")
	return cmd
}

func modesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List conversation modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := modes.Lookup(cfg.DefaultMode)
			if err != nil {
				return err
			}
			return ui.RenderModes(os.Stdout, modes.All(), current.ID)
		},
	}
}

func artifactsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "List saved code files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.Open(cfg.DatabasePath())
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.ListArtifacts(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return ui.RenderArtifacts(os.Stdout, list, terminalWidth())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of files to show (0 for all)")
	return cmd
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping [provider]",
		Short: "Check that a provider is reachable and the API key works",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := targetProvider(args)
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			if err := provider.PingProvider(ctx, p.ID, p.BaseURL, cfg.APIKey(p.ID)); err != nil {
				return err
			}
			fmt.Println(ui.SuccessStyle.Render("✓ "+config.ProviderDisplayName(p.ID)) + " " + ui.DimStyle.Render(p.BaseURL))
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models [provider]",
		Short: "List the models a provider offers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := targetProvider(args)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			models, err := provider.FetchModels(ctx, p.ID, p.BaseURL, cfg.APIKey(p.ID))
			if err != nil {
				return err
			}
			sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
			for _, m := range models {
				marker := "  "
				if m.Name == p.Model {
					marker = "* "
				}
				fmt.Println(marker + m.Name)
			}
			return nil
		},
	}
}

func providerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Show or change provider settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List providers and whether they can be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			ready := provider.InitializeProviders(cfg)
			for _, id := range config.ProviderIDs() {
				p, _ := cfg.Provider(id)
				status := ui.DimStyle.Render("disabled")
				switch {
				case ready[id] != nil:
					status = ui.SuccessStyle.Render("ready")
				case p.Enabled:
					status = ui.WarningStyle.Render("missing API key")
				}
				marker := "  "
				if id == cfg.DefaultProvider {
					marker = "* "
				}
				fmt.Printf("%s%-11s %s  %s\n", marker, id, status, ui.DimStyle.Render(config.DefaultModel(id)))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <provider> <field> <value>",
		Short: "Set base_url, model, enabled or apikey for a provider",
		Example: `  mercurial provider set deepseek apikey sk-...
  mercurial provider set ollama enabled true
  mercurial provider set openai model gpt-4o`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.UpdateProviderField(cfg, args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Println(ui.SuccessStyle.Render("saved"))
			return nil
		},
	})

	return cmd
}

// targetProvider resolves the provider named in args, or the default.
func targetProvider(args []string) config.ProviderConfig {
	if len(args) == 1 {
		if p, ok := cfg.Provider(args[0]); ok {
			return p
		}
		return config.ProviderConfig{ID: args[0], BaseURL: config.DefaultBaseURL(args[0]), Model: config.DefaultModel(args[0])}
	}
	return cfg.ActiveProvider()
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return ui.DefaultWidth
}
