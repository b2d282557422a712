package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"planbid/internal/domain"
	"planbid/internal/port"
)

// MockEmbedder is a mock implementation of port.Embedder.
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) Dimensions() int {
	return m.Called().Int(0)
}

func (m *MockEmbedder) ModelName() string {
	return m.Called().String(0)
}

// MockOCRProvider is a mock implementation of port.OCRProvider.
type MockOCRProvider struct {
	mock.Mock
}

func (m *MockOCRProvider) OCR(ctx context.Context, pdf []byte, fileName string) ([]domain.PageText, error) {
	args := m.Called(ctx, pdf, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PageText), args.Error(1)
}

// MockVisionAnalyzer is a mock implementation of port.VisionAnalyzer.
type MockVisionAnalyzer struct {
	mock.Mock
}

func (m *MockVisionAnalyzer) Analyze(ctx context.Context, input port.VisionInput) (*port.VisionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.VisionOutput), args.Error(1)
}
