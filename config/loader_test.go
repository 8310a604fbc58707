package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "docs", cfg.Store.DocsDir)
	assert.Equal(t, "instant", cfg.Search.Provider)
	assert.Equal(t, 150_000, cfg.Fetch.MaxChars)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.BaseDelay)
	assert.Equal(t, "gem-key", cfg.LLM.APIKey)
	assert.Equal(t, 6, cfg.Workflow.MaxSearchResults)
	assert.Equal(t, 3, cfg.Workflow.MaxDocsToDownload)
	assert.Equal(t, 8, cfg.Workflow.RetrieveTopN)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "gather.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: redis
  redis:
    prefix: "test:"
llm:
  provider: openai
  base_delay: 2s
workflow:
  max_docs_to_download: 5
`), 0o644))

	t.Setenv("GATHER_WORKFLOW_MAX_DOCS_TO_DOWNLOAD", "4")
	t.Setenv("API_KEY", "sk-test")
	t.Setenv("BASE_URL", "http://localhost:11434/v1")
	t.Setenv("MODEL", "qwen")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "test:", cfg.Store.Redis.Prefix)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 4, cfg.Workflow.MaxDocsToDownload)
	assert.Equal(t, 2*time.Second, cfg.LLM.BaseDelay)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "qwen", cfg.LLM.Model)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GATHER_STORE_DRIVER", "s3")
	t.Setenv("GATHER_CONVERT_MODE", "magic")
	t.Setenv("GATHER_WORKFLOW_CONTEXT_DOCS", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
	assert.Contains(t, err.Error(), "convert.mode")
	assert.Contains(t, err.Error(), "workflow.context_docs")
}
