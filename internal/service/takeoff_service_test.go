package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planbid/internal/domain"
	"planbid/internal/port"
	"planbid/internal/service"
	"planbid/internal/takeoff"
	"planbid/internal/vision"
	"planbid/mocks"
)

type recordingAnalyzer struct {
	input  port.VisionInput
	result domain.MergedTakeoffResult
	models []string
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, input port.VisionInput) *takeoff.AnalyzeResult {
	r.input = input
	return &takeoff.AnalyzeResult{Result: r.result, ModelsUsed: r.models}
}

func sampleRun(planID uuid.UUID) *domain.TakeoffRun {
	return &domain.TakeoffRun{
		ID:     uuid.New(),
		PlanID: planID,
		Result: domain.MergedTakeoffResult{Items: []domain.MergedTakeoffItem{
			{ID: "item-001", TakeoffItem: domain.TakeoffItem{Name: "Floor tile", Unit: domain.UnitSF, Category: domain.CategoryFinishes}},
			{ID: "item-002", TakeoffItem: domain.TakeoffItem{Name: "Toilet partition", Quantity: 4, Unit: domain.UnitEA, Category: domain.CategoryInterior, Notes: "material TBD"}},
		}},
	}
}

func TestTakeoffService_AnalyzeWithoutProviders(t *testing.T) {
	svc := service.NewTakeoffService(service.TakeoffDeps{Plans: new(mocks.MockPlanRepo), Runs: new(mocks.MockTakeoffRepo)}, nil)

	_, err := svc.Analyze(context.Background(), uuid.New(), nil, &domain.TakeoffJobPayload{Images: []domain.PageImage{pngImage()}})
	assert.ErrorIs(t, err, domain.ErrNoVisionProviders)
}

func TestTakeoffService_AnalyzeStoresRun(t *testing.T) {
	plans := new(mocks.MockPlanRepo)
	runs := new(mocks.MockTakeoffRepo)
	storage := new(mocks.MockObjectStorage)
	planID, jobID := uuid.New(), uuid.New()

	analyzer := &recordingAnalyzer{
		result: domain.MergedTakeoffResult{Items: []domain.MergedTakeoffItem{{ID: "item-001"}}},
		models: []string{"claude-sonnet", "gpt-4o"},
	}
	plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID}, nil)
	storage.On("Download", mock.Anything, "renders", "plan/p2.png").Return([]byte("png-bytes"), nil)
	runs.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.TakeoffRun) bool {
		return r.PlanID == planID && r.JobID != nil && *r.JobID == jobID && len(r.Result.Items) == 1
	})).Return(nil)

	svc := service.NewTakeoffService(service.TakeoffDeps{
		Plans:       plans,
		Runs:        runs,
		Analyzer:    analyzer,
		Storage:     storage,
		ImageBucket: "renders",
	}, nil)

	run, err := svc.Analyze(context.Background(), planID, &jobID, &domain.TakeoffJobPayload{
		Images: []domain.PageImage{pngImage(), {Page: 2, ContentType: "image/png", Key: "plan/p2.png"}},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StringList{"claude-sonnet", "gpt-4o"}, run.ModelsUsed)
	require.Len(t, analyzer.input.Images, 2)
	assert.Equal(t, []byte("png-bytes"), analyzer.input.Images[1].Data)
	assert.Equal(t, "renders", analyzer.input.Images[1].Bucket)
	assert.Equal(t, vision.DefaultSystemPrompt, analyzer.input.SystemPrompt)
	assert.Equal(t, vision.DefaultUserPrompt, analyzer.input.UserPrompt)
	runs.AssertExpectations(t)
}

func TestTakeoffService_AnalyzeStorageRefWithoutStorage(t *testing.T) {
	plans := new(mocks.MockPlanRepo)
	planID := uuid.New()
	plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID}, nil)

	svc := service.NewTakeoffService(service.TakeoffDeps{Plans: plans, Runs: new(mocks.MockTakeoffRepo), Analyzer: &recordingAnalyzer{}}, nil)
	_, err := svc.Analyze(context.Background(), planID, nil, &domain.TakeoffJobPayload{
		Images: []domain.PageImage{{Page: 1, ContentType: "image/png", Key: "p1.png"}},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTakeoffService_LatestNoResult(t *testing.T) {
	plans := new(mocks.MockPlanRepo)
	runs := new(mocks.MockTakeoffRepo)
	planID := uuid.New()
	plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID}, nil)
	runs.On("LatestForPlan", mock.Anything, planID).Return(nil, domain.ErrNoTakeoffResult)

	_, err := service.NewTakeoffService(service.TakeoffDeps{Plans: plans, Runs: runs}, nil).Latest(context.Background(), planID)

	assert.ErrorIs(t, err, domain.ErrNoTakeoffResult)
}

func TestTakeoffService_MissingInfo(t *testing.T) {
	plans := new(mocks.MockPlanRepo)
	runs := new(mocks.MockTakeoffRepo)
	planID := uuid.New()
	plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID}, nil)
	runs.On("LatestForPlan", mock.Anything, planID).Return(sampleRun(planID), nil)

	report, err := service.NewTakeoffService(service.TakeoffDeps{Plans: plans, Runs: runs}, nil).
		MissingInfo(context.Background(), planID, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, report.ItemsAffected)
	assert.Equal(t, 2, report.ByCategory[domain.GapMeasurement])
	assert.Equal(t, 1, report.ByCategory[domain.GapSpecification])
}

func TestTakeoffService_ExportInline(t *testing.T) {
	plans := new(mocks.MockPlanRepo)
	runs := new(mocks.MockTakeoffRepo)
	planID := uuid.New()
	plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID, FileName: "Clinic Rev 2.pdf"}, nil)
	runs.On("LatestForPlan", mock.Anything, planID).Return(sampleRun(planID), nil)

	res, err := service.NewTakeoffService(service.TakeoffDeps{Plans: plans, Runs: runs}, nil).
		Export(context.Background(), planID, domain.ExportFormatCSV, true)

	require.NoError(t, err)
	assert.Regexp(t, `^Clinic_Rev_2_takeoff_\d{4}-\d{2}-\d{2}\.csv$`, res.FileName)
	assert.Contains(t, res.ContentType, "text/csv")
	assert.Contains(t, string(res.Data), "Toilet partition")
	assert.Empty(t, res.URL)
}

func TestTakeoffService_ExportUpload(t *testing.T) {
	plans := new(mocks.MockPlanRepo)
	runs := new(mocks.MockTakeoffRepo)
	storage := new(mocks.MockObjectStorage)
	planID := uuid.New()
	run := sampleRun(planID)

	plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID, FileName: "clinic.pdf"}, nil)
	runs.On("LatestForPlan", mock.Anything, planID).Return(run, nil)
	storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "exports" && in.Size > 0
	})).Return(&port.UploadOutput{}, nil)
	storage.On("GetPresignedURL", mock.Anything, "exports", mock.AnythingOfType("string"), int64(3600)).
		Return("https://exports.example.com/signed", nil)

	res, err := service.NewTakeoffService(service.TakeoffDeps{
		Plans:        plans,
		Runs:         runs,
		Storage:      storage,
		ExportBucket: "exports",
	}, nil).Export(context.Background(), planID, domain.ExportFormatXLSX, true)

	require.NoError(t, err)
	assert.Equal(t, "https://exports.example.com/signed", res.URL)
	key := storage.Calls[1].Arguments.String(2)
	assert.Contains(t, key, run.ID.String())
	assert.Contains(t, key, ".xlsx")
}

func TestTakeoffService_ExportUploadFailure(t *testing.T) {
	plans := new(mocks.MockPlanRepo)
	runs := new(mocks.MockTakeoffRepo)
	storage := new(mocks.MockObjectStorage)
	planID := uuid.New()

	plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID, FileName: "clinic.pdf"}, nil)
	runs.On("LatestForPlan", mock.Anything, planID).Return(sampleRun(planID), nil)
	storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	_, err := service.NewTakeoffService(service.TakeoffDeps{
		Plans:        plans,
		Runs:         runs,
		Storage:      storage,
		ExportBucket: "exports",
	}, nil).Export(context.Background(), planID, domain.ExportFormatCSV, true)

	assert.Error(t, err)
}

func TestTakeoffService_ExportPresignFailureRemovesUpload(t *testing.T) {
	plans := new(mocks.MockPlanRepo)
	runs := new(mocks.MockTakeoffRepo)
	storage := new(mocks.MockObjectStorage)
	planID := uuid.New()

	plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID, FileName: "clinic.pdf"}, nil)
	runs.On("LatestForPlan", mock.Anything, planID).Return(sampleRun(planID), nil)
	storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	storage.On("GetPresignedURL", mock.Anything, "exports", mock.AnythingOfType("string"), mock.Anything).
		Return("", errors.New("signing key expired"))
	storage.On("Delete", mock.Anything, "exports", mock.AnythingOfType("string")).Return(nil)

	_, err := service.NewTakeoffService(service.TakeoffDeps{
		Plans:        plans,
		Runs:         runs,
		Storage:      storage,
		ExportBucket: "exports",
	}, nil).Export(context.Background(), planID, domain.ExportFormatCSV, true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "presign")
	presignedKey := storage.Calls[1].Arguments.String(2)
	storage.AssertCalled(t, "Delete", mock.Anything, "exports", presignedKey)
}
