package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planbid/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 900, cfg.Chunking.MaxChars)
	assert.Equal(t, 250, cfg.Chunking.MinChars)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 0.6, cfg.Merge.NameSimilarity)
	assert.Equal(t, 0.15, cfg.Merge.CorroborationBoost)
	assert.Equal(t, []string{"plan-uploads", "uploads"}, cfg.S3.FallbackBuckets)
	assert.False(t, cfg.OCR.Enabled())

	providers := cfg.Vision.Providers()
	require.Len(t, providers, 3)
	assert.Equal(t, "claude", providers[0].Provider)
	assert.Equal(t, "gemini", providers[2].Provider)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PLANBID_SERVER_PORT", "")
	t.Setenv("PORT", "9090")
	t.Setenv("PLANBID_OCR_API_KEY", "ocr-key")
	t.Setenv("PLANBID_S3_FALLBACK_BUCKETS", " legacy , ,archive")
	t.Setenv("PLANBID_MERGE_NAME_SIMILARITY", "0.75")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.True(t, cfg.OCR.Enabled())
	assert.Equal(t, []string{"legacy", "archive"}, cfg.S3.FallbackBuckets)
	assert.Equal(t, 0.75, cfg.Merge.NameSimilarity)
}

func TestLoad_RejectsInvertedChunkBounds(t *testing.T) {
	t.Setenv("PLANBID_CHUNKING_MIN_CHARS", "1000")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestDBConfig_DSN(t *testing.T) {
	d := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "plans", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/plans?sslmode=disable", d.DSN())
}
