// Package cmd implements the property-finder command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"property-finder/services"
)

var rootCmd = &cobra.Command{
	Use:   "property-finder",
	Short: "Search listing sites and rank the properties they return",
	Long: `Property Finder renders a search page in a browser, extracts the
listings it shows, validates them and ranks them by how well they match
your keywords.

Examples:
  property-finder run --url "https://www.airbnb.com/s/{location}/homes?query={query}" \
      --location Colorado --query cabin
  property-finder run --url "https://example.com/search?q={query}" \
      --query "beach house" --keywords beach,ocean,waterfront
  property-finder swamp
  property-finder history search "colorado cabin results"
  property-finder history issues
  property-finder serve --addr :8080`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ./property-finder.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("json-logs", false, "emit logs as JSON")

	bindFlags(flags, map[string]string{
		"config":    "config",
		"debug":     "debug",
		"quiet":     "quiet",
		"json-logs": "json_logs",
	})

	rootCmd.AddCommand(profilesCmd)
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the built-in scoring profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		for _, name := range services.BuiltinProfiles() {
			p, err := services.LoadProfile(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-10s %s\n", p.Name, p.Description)
		}
		return nil
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// bindFlags maps flag names to config keys so flags override file and
// environment values.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if f := flags.Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
