package vision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planbid/internal/config"
	"planbid/internal/port"
	"planbid/internal/vision"
	"planbid/mocks"
)

func TestRegistry_New(t *testing.T) {
	r := vision.NewRegistry()
	fake := new(mocks.MockVisionAnalyzer)
	r.Register("fake", func(cfg *config.VisionProviderConfig) (port.VisionAnalyzer, error) {
		return fake, nil
	})
	r.Register("another", func(cfg *config.VisionProviderConfig) (port.VisionAnalyzer, error) {
		return fake, nil
	})

	a, err := r.New(&config.VisionProviderConfig{Provider: "fake"})
	require.NoError(t, err)
	assert.Same(t, fake, a)
	assert.Equal(t, []string{"another", "fake"}, r.Names())

	_, err = r.New(&config.VisionProviderConfig{Provider: "missing"})
	assert.Error(t, err)
}

func TestPromptsOrDefault(t *testing.T) {
	sys, user := vision.PromptsOrDefault("", "count doors")
	assert.Equal(t, vision.DefaultSystemPrompt, sys)
	assert.Equal(t, "count doors", user)
}
