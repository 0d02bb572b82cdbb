package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	t.Cleanup(func() {
		genTopic, genPlatform, genLocale, listLocales = "", "twitter", "en", false
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestGenerateListLocales(t *testing.T) {
	assert.Equal(t, "en\nes\nfr\n", runCLI(t, "generate", "--list-locales"))
}

func TestGenerateCommand(t *testing.T) {
	out := runCLI(t, "generate", "--topic", "weather", "--platform", "x")

	var content struct {
		Platform string   `json:"platform"`
		Text     string   `json:"text"`
		Hashtags []string `json:"hashtags"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &content))
	assert.Equal(t, "twitter", content.Platform)
	assert.Contains(t, content.Text, "Weather Update")
	assert.Contains(t, content.Hashtags, "#Agriculture")
}
