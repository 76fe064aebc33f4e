package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragreader/internal/domain"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "rag", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	for _, name := range []string{"serve", "chat", "ask", "mcp", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	cmd := NewRootCmd()
	tests := []struct {
		flagName  string
		shorthand string
		defValue  string
	}{
		{"config", "c", ""},
		{"verbose", "v", "false"},
		{"session", "s", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := cmd.PersistentFlags().Lookup(tt.flagName)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.defValue, flag.DefValue)
		})
	}
}

func TestMCPCmd(t *testing.T) {
	cmd := NewMCPCmd()
	assert.Equal(t, "mcp", cmd.Use)
	assert.Contains(t, cmd.Long, "stdio")
	assert.NotEmpty(t, cmd.Example)
	assert.NotNil(t, cmd.RunE)
}

func TestVersionCmd_Output(t *testing.T) {
	orig := versionInfo
	t.Cleanup(func() { versionInfo = orig })
	SetVersion("1.2.3", "abc123", "2026-01-31")

	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	for _, want := range []string{"ragreader 1.2.3", "Commit: abc123", "Built:  2026-01-31"} {
		assert.Contains(t, out.String(), want)
	}
}

func TestAskCmd_RequiresArgs(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ask", "only-a-dir"})
	assert.Error(t, root.Execute())
}

// askFixture writes a config pointing the LLM at a fake chat endpoint and a
// directory holding one document.
func askFixture(t *testing.T, reply string) (cfgPath, docs string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	t.Setenv("RAG_TEST_LLM_KEY", "test-key")

	dir := t.TempDir()
	docs = filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "sky.txt"),
		[]byte("The sky is blue on a clear day. At sunset it turns orange."), 0o644))

	cfgPath = filepath.Join(dir, "config.yaml")
	cfg := "llm:\n  base_url: " + srv.URL + "/v1\n  api_key_env: RAG_TEST_LLM_KEY\n  max_retries: 1\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	t.Chdir(dir)
	return cfgPath, docs
}

func TestAskCmd_PrintsAnswerAndSources(t *testing.T) {
	cfgPath, docs := askFixture(t, "It is blue.")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "ask", docs, "what", "color", "is", "the", "sky?"})
	require.NoError(t, root.Execute())

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "It is blue.\n"), got)
	assert.Contains(t, got, "Sources:")
	assert.Contains(t, got, "[1] sky.txt: The sky is blue")
}

func TestAskCmd_JSON(t *testing.T) {
	cfgPath, docs := askFixture(t, "Orange.")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "ask", "--json", docs, "sunset colour"})
	require.NoError(t, root.Execute())

	var res domain.QueryResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "sunset colour", res.Query)
	assert.Equal(t, "Orange.", res.Answer)
	require.Len(t, res.RelevantDocs, 1)
	assert.Equal(t, "sky.txt", res.RelevantDocs[0].DocumentName)
	assert.GreaterOrEqual(t, res.ResponseTime, 0.0)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview("a\n\n b", 10))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}
