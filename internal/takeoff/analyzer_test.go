package takeoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planbid/internal/domain"
	"planbid/internal/port"
	"planbid/internal/takeoff"
	"planbid/internal/vision"
	"planbid/mocks"
)

const slabJSON = `{"items":[{"name":"Slab on grade","quantity":100,"unit":"SF","category":"structural","confidence":0.8}]}`

func visionInput() port.VisionInput {
	return port.VisionInput{Images: []domain.PageImage{{Page: 1, ContentType: "image/png", Data: []byte("png")}}}
}

func TestNewAnalyzer_RequiresProviders(t *testing.T) {
	_, err := takeoff.NewAnalyzer(nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNoVisionProviders)
}

func TestAnalyzer_ProviderFailuresAreIsolated(t *testing.T) {
	ok := new(mocks.MockVisionAnalyzer)
	failing := new(mocks.MockVisionAnalyzer)
	garbled := new(mocks.MockVisionAnalyzer)

	ok.On("Analyze", mock.Anything, mock.Anything).
		Return(&port.VisionOutput{Text: slabJSON, Model: "claude-test"}, nil)
	failing.On("Analyze", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))
	garbled.On("Analyze", mock.Anything, mock.Anything).
		Return(&port.VisionOutput{Text: "Sorry, I cannot help with that.", Model: "gemini-test"}, nil)

	a, err := takeoff.NewAnalyzer([]takeoff.Provider{
		{Name: "claude", Analyzer: ok},
		{Name: "openai", Analyzer: failing},
		{Name: "gemini", Analyzer: garbled},
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"claude", "openai", "gemini"}, a.ProviderNames())

	res := a.Analyze(context.Background(), visionInput())

	require.Len(t, res.Result.Items, 1)
	assert.Equal(t, "Slab on grade", res.Result.Items[0].Name)
	assert.Equal(t, []string{"claude-test"}, res.ModelsUsed)
	require.Len(t, res.Providers, 3)
	assert.NoError(t, res.Providers[0].Err)
	assert.Error(t, res.Providers[1].Err)
	assert.ErrorIs(t, res.Providers[2].Err, takeoff.ErrNoItems)
	assert.Contains(t, res.Result.Metadata.ProviderErrors, "openai")
	assert.Contains(t, res.Result.Metadata.ProviderErrors, "gemini")
}

func TestAnalyzer_AllProvidersFail(t *testing.T) {
	failing := new(mocks.MockVisionAnalyzer)
	failing.On("Analyze", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	a, err := takeoff.NewAnalyzer([]takeoff.Provider{
		{Name: "claude", Analyzer: failing},
		{Name: "openai", Analyzer: failing},
	}, nil, nil)
	require.NoError(t, err)

	res := a.Analyze(context.Background(), visionInput())

	assert.NotNil(t, res.Result.Items)
	assert.Empty(t, res.Result.Items)
	assert.Equal(t, 0, res.Result.Metadata.DuplicatesRemoved)
	assert.Empty(t, res.ModelsUsed)
}

func TestAnalyzer_RateLimitStartsCooldown(t *testing.T) {
	limited := new(mocks.MockVisionAnalyzer)
	limited.On("Analyze", mock.Anything, mock.Anything).
		Return(nil, vision.NewRateLimitError("claude", errors.New("429"), 2*time.Minute)).Once()

	a, err := takeoff.NewAnalyzer([]takeoff.Provider{{Name: "claude", Analyzer: limited}}, nil, nil)
	require.NoError(t, err)

	first := a.Analyze(context.Background(), visionInput())
	require.Error(t, first.Providers[0].Err)
	assert.False(t, first.Providers[0].Skipped)

	second := a.Analyze(context.Background(), visionInput())
	assert.True(t, second.Providers[0].Skipped)
	assert.Contains(t, second.Providers[0].Err.Error(), "rate limited until")

	limited.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestAnalyzer_ProviderReturnsAfterCooldown(t *testing.T) {
	flaky := new(mocks.MockVisionAnalyzer)
	flaky.On("Analyze", mock.Anything, mock.Anything).
		Return(nil, vision.NewRateLimitError("openai", errors.New("429"), time.Millisecond)).Once()
	flaky.On("Analyze", mock.Anything, mock.Anything).
		Return(&port.VisionOutput{Text: slabJSON, Model: "gpt-test"}, nil)

	a, err := takeoff.NewAnalyzer([]takeoff.Provider{{Name: "openai", Analyzer: flaky}}, nil, nil)
	require.NoError(t, err)

	first := a.Analyze(context.Background(), visionInput())
	require.Error(t, first.Providers[0].Err)

	time.Sleep(10 * time.Millisecond)
	second := a.Analyze(context.Background(), visionInput())
	assert.False(t, second.Providers[0].Skipped)
	assert.NoError(t, second.Providers[0].Err)
	assert.Len(t, second.Result.Items, 1)

	flaky.AssertNumberOfCalls(t, "Analyze", 2)
}

func TestAnalyzer_RecoversProviderPanic(t *testing.T) {
	panicky := new(mocks.MockVisionAnalyzer)
	panicky.On("Analyze", mock.Anything, mock.Anything).Panic("nil map write")
	ok := new(mocks.MockVisionAnalyzer)
	ok.On("Analyze", mock.Anything, mock.Anything).
		Return(&port.VisionOutput{Text: slabJSON, Model: "gpt-test"}, nil)

	a, err := takeoff.NewAnalyzer([]takeoff.Provider{
		{Name: "claude", Analyzer: panicky},
		{Name: "openai", Analyzer: ok},
	}, nil, nil)
	require.NoError(t, err)

	res := a.Analyze(context.Background(), visionInput())

	require.Error(t, res.Providers[0].Err)
	assert.Contains(t, res.Providers[0].Err.Error(), "panic")
	assert.Len(t, res.Result.Items, 1)
}

func TestAnalyzer_ProviderTimeout(t *testing.T) {
	slow := new(mocks.MockVisionAnalyzer)
	slow.On("Analyze", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	a, err := takeoff.NewAnalyzer([]takeoff.Provider{
		{Name: "claude", Analyzer: slow, Timeout: 20 * time.Millisecond},
	}, nil, nil)
	require.NoError(t, err)

	start := time.Now()
	res := a.Analyze(context.Background(), visionInput())

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, res.Providers[0].Err, context.DeadlineExceeded)
	assert.Empty(t, res.Result.Items)
}
