package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-finder/config"
	"property-finder/services"
	"property-finder/storage"
	"property-finder/utils"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("PROPERTY_FINDER_STORE_ENABLED", "false")
	t.Setenv("PROPERTY_FINDER_QUIET", "true")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestProfilesCommand(t *testing.T) {
	out, err := execute(t, "profiles")
	require.NoError(t, err)
	assert.Contains(t, out, "property")
	assert.Contains(t, out, "swamp")
}

func TestRunRequiresQuery(t *testing.T) {
	_, err := execute(t, "run", "--url", "https://example.com/search?q={query}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--query is required")
}

func TestRunRejectsUnknownProfile(t *testing.T) {
	_, err := execute(t, "run", "--query", "cabin", "--profile", "no-such-profile")
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "swamp", "history", "serve", "profiles"} {
		assert.True(t, names[want], "missing command %q", want)
	}

	sub := map[string]bool{}
	for _, c := range historyCmd.Commands() {
		sub[c.Name()] = true
	}
	for _, want := range []string{"search", "similar", "issues", "show"} {
		assert.True(t, sub[want], "missing history command %q", want)
	}
}

func testApp(t *testing.T) *app {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	return &app{cfg: cfg, logger: utils.NewDiscardLogger()}
}

func TestWritersPutJSONLast(t *testing.T) {
	a := testApp(t)
	a.cfg.Output.CSVPath = "out.csv"
	a.cfg.Output.YAMLPath = "out.yaml"

	ws := a.writers()
	require.Len(t, ws, 3)
	assert.IsType(t, &storage.CSVWriter{}, ws[0])
	assert.IsType(t, &storage.YAMLWriter{}, ws[1])
	assert.IsType(t, &storage.JSONWriter{}, ws[2])
}

func TestServeScorerFactoryOnlyResolvesBuiltins(t *testing.T) {
	a := testApp(t)
	_, scorerFor, err := a.buildPipeline("property", false)
	require.NoError(t, err)

	_, err = scorerFor("swamp")
	assert.NoError(t, err)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: custom\ndefault_price: 100\nmax_score: 10\n"), 0o644))
	_, err = scorerFor(path)
	assert.ErrorIs(t, err, services.ErrUnknownProfile)
	_, err = scorerFor("/etc/passwd")
	assert.ErrorIs(t, err, services.ErrUnknownProfile)
}
