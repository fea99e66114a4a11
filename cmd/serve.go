package cmd

import (
	"github.com/spf13/cobra"

	"property-finder/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking pipeline over HTTP",
	Long: `Start an HTTP server exposing:

  GET  /healthz
  POST /api/v1/rank  {"markup": "...", "intent": "...", "keywords": [...], "profile": "..."}`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		bindFlags(cmd.Flags(), map[string]string{
			"addr":    "server.addr",
			"mode":    "server.mode",
			"profile": "scoring.profile",
		})
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		pipeline, scorerFor, err := a.buildPipeline(a.cfg.Scoring.Profile, false)
		if err != nil {
			return err
		}
		handler := server.NewHandler(pipeline, scorerFor, a.sinks(), a.logger)
		return server.Serve(ctx, a.cfg.Server.Addr, server.NewRouter(a.cfg.Server.Mode, handler), a.logger)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", "", "listen address (default :8080)")
	flags.String("mode", "", "gin mode: debug, release or test")
	flags.StringP("profile", "p", "", "default scoring profile")
	rootCmd.AddCommand(serveCmd)
}
