package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"property-finder/services"
)

// searchFlagKeys maps search flags onto config keys.
var searchFlagKeys = map[string]string{
	"url":            "search.url_template",
	"profile":        "scoring.profile",
	"output":         "output.json_path",
	"yaml":           "output.yaml_path",
	"csv":            "output.csv_path",
	"insights":       "output.insights",
	"remote-browser": "browser.remote_url",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search a listing site and rank the results",
	Long: `Render a search page, extract its listings and rank them.

The --url template may contain {query} and {location} placeholders; a
template without them is fetched as is. Keywords default to the terms of
--intent, or else of --query.`,
	Args:    cobra.NoArgs,
	PreRunE: bindSearchFlags,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSearch(cmd, "")
	},
}

var swampCmd = &cobra.Command{
	Use:     "swamp",
	Short:   "Find swampy, secluded stays (defaults to Louisiana)",
	Args:    cobra.NoArgs,
	PreRunE: bindSearchFlags,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSearch(cmd, "swamp")
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, swampCmd} {
		flags := c.Flags()
		flags.StringP("url", "u", "", "URL template with {query} and {location} placeholders")
		flags.String("query", "", "search term (default: the profile's query)")
		flags.String("location", "", "location filter (default: the profile's location)")
		flags.StringP("keywords", "k", "", "scoring keywords, comma-separated")
		flags.StringP("intent", "i", "", "free-text description of what you are looking for")
		flags.StringP("output", "o", "", "results JSON file")
		flags.String("yaml", "", "also write results as YAML to this file")
		flags.String("csv", "", "also write results as CSV to this file")
		flags.Bool("insights", false, "print price and rating insights")
		flags.Bool("no-bounds", false, "keep listings outside the plausible price range")
		flags.Bool("no-enrich", false, "never fetch listing descriptions")
		flags.String("remote-browser", "", "devtools websocket URL of a running browser")
		rootCmd.AddCommand(c)
	}
	runCmd.Flags().StringP("profile", "p", "", "scoring profile name or YAML file")
}

// bindSearchFlags binds only the running command's flags, since run and
// swamp share config keys.
func bindSearchFlags(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd.Flags(), searchFlagKeys)
	if noEnrich, _ := cmd.Flags().GetBool("no-enrich"); noEnrich {
		viper.Set("fetch.enrich", false)
	}
	return nil
}

func runSearch(cmd *cobra.Command, profileOverride string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	profileName := a.cfg.Scoring.Profile
	if profileOverride != "" {
		profileName = profileOverride
	}
	noBounds, _ := cmd.Flags().GetBool("no-bounds")
	pipeline, _, err := a.buildPipeline(profileName, noBounds)
	if err != nil {
		return err
	}
	profile := pipeline.Scorer().Profile()

	flags := cmd.Flags()
	query, _ := flags.GetString("query")
	location, _ := flags.GetString("location")
	keywords, _ := flags.GetString("keywords")
	intent, _ := flags.GetString("intent")
	if query == "" {
		query = profile.DefaultQuery
	}
	if location == "" {
		location = profile.DefaultLocation
	}
	if query == "" && intent == "" && keywords == "" {
		return fmt.Errorf("--query is required for profile %q", profile.Name)
	}

	finder := services.NewFinder(a.browserSession(), pipeline, a.writers(), a.sinks(), a.logger, services.FinderOptions{
		SlowScrape:   a.cfg.Search.SlowScrape,
		ThinContent:  a.cfg.Search.ThinContent,
		ShowInsights: a.cfg.Output.Insights,
		Output:       cmd.OutOrStdout(),
	})
	doc, err := finder.Run(ctx, services.SearchRequest{
		URLTemplate: a.cfg.Search.URLTemplate,
		Query:       query,
		Location:    location,
		Intent:      intent,
		Keywords:    services.SplitKeywords(keywords),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nDone! Found %d results.\nSee %s for full data.\n", doc.Total, a.cfg.Output.JSONPath)
	return nil
}
