package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planbid/internal/domain"
	"planbid/internal/service"
	"planbid/mocks"
)

type jobFixture struct {
	jobs    *mocks.MockJobRepo
	plans   *mocks.MockPlanRepo
	ingest  *mocks.MockIngestService
	takeoff *mocks.MockTakeoffService
	svc     service.JobService
}

func newJobFixture() *jobFixture {
	f := &jobFixture{
		jobs:    new(mocks.MockJobRepo),
		plans:   new(mocks.MockPlanRepo),
		ingest:  new(mocks.MockIngestService),
		takeoff: new(mocks.MockTakeoffService),
	}
	f.svc = service.NewJobService(f.jobs, f.plans, f.ingest, f.takeoff, nil)
	return f
}

func pngImage() domain.PageImage {
	return domain.PageImage{Page: 1, ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
}

func TestJobService_EnqueueIngest(t *testing.T) {
	f := newJobFixture()
	planID := uuid.New()
	f.plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID}, nil)
	f.jobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.Job) bool {
		return j.PlanID == planID && j.Kind == domain.JobKindIngest
	})).Return(nil)

	job, err := f.svc.EnqueueIngest(context.Background(), planID)

	require.NoError(t, err)
	assert.Equal(t, domain.JobKindIngest, job.Kind)
	f.jobs.AssertExpectations(t)
}

func TestJobService_EnqueueIngestUnknownPlan(t *testing.T) {
	f := newJobFixture()
	planID := uuid.New()
	f.plans.On("GetByID", mock.Anything, planID).Return(nil, domain.ErrPlanNotFound)

	_, err := f.svc.EnqueueIngest(context.Background(), planID)

	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
	f.jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJobService_EnqueueTakeoffValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload *domain.TakeoffJobPayload
	}{
		{"nil payload", nil},
		{"no images", &domain.TakeoffJobPayload{}},
		{"bad content type", &domain.TakeoffJobPayload{Images: []domain.PageImage{{ContentType: "image/gif", Data: []byte{1}}}}},
		{"no data or key", &domain.TakeoffJobPayload{Images: []domain.PageImage{{ContentType: "image/png"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJobFixture()
			_, err := f.svc.EnqueueTakeoff(context.Background(), uuid.New(), tt.payload)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestJobService_EnqueueTakeoff(t *testing.T) {
	f := newJobFixture()
	planID := uuid.New()
	payload := &domain.TakeoffJobPayload{
		Images: []domain.PageImage{pngImage(), {Page: 2, ContentType: "image/jpeg", Bucket: "renders", Key: "p2.jpg"}},
	}
	f.plans.On("GetByID", mock.Anything, planID).Return(&domain.PlanDocument{ID: planID}, nil)
	f.jobs.On("Create", mock.Anything, mock.Anything).Return(nil)

	job, err := f.svc.EnqueueTakeoff(context.Background(), planID, payload)

	require.NoError(t, err)
	assert.Equal(t, domain.JobKindTakeoff, job.Kind)
	var decoded domain.TakeoffJobPayload
	require.NoError(t, json.Unmarshal(job.Payload, &decoded))
	assert.Len(t, decoded.Images, 2)
	assert.Equal(t, "p2.jpg", decoded.Images[1].Key)
}

func TestJobService_ProcessIngestCompletes(t *testing.T) {
	f := newJobFixture()
	job := &domain.Job{ID: uuid.New(), PlanID: uuid.New(), Kind: domain.JobKindIngest, Attempts: 1}
	f.ingest.On("IngestPlan", mock.Anything, job.PlanID).Return(&domain.IngestResult{
		PlanID:     job.PlanID,
		ChunkCount: 7,
		Warnings:   []string{"scanned"},
	}, nil)
	f.jobs.On("Complete", mock.Anything, job.ID, mock.Anything, []string{"scanned"}).Return(nil)

	f.svc.Process(context.Background(), job, 3)

	f.jobs.AssertExpectations(t)
	raw := f.jobs.Calls[0].Arguments.Get(2).([]byte)
	assert.Contains(t, string(raw), `"chunk_count":7`)
}

func TestJobService_ProcessRetryPolicy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		attempts int
		requeue  bool
	}{
		{"transient error requeued", errors.New("connection reset"), 1, true},
		{"attempts exhausted", errors.New("connection reset"), 3, false},
		{"embedding not configured", domain.ErrEmbeddingNotConfigured, 1, false},
		{"dimension mismatch", domain.NewStageError(domain.StageEmbedding, &domain.DimensionMismatchError{Expected: 1536, Got: 3}), 1, false},
		{"embedding API error", &domain.EmbeddingAPIError{StatusCode: 400}, 1, false},
		{"plan gone", domain.ErrPlanNotFound, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJobFixture()
			job := &domain.Job{ID: uuid.New(), PlanID: uuid.New(), Kind: domain.JobKindIngest, Attempts: tt.attempts}
			f.ingest.On("IngestPlan", mock.Anything, job.PlanID).Return(nil, tt.err)
			f.jobs.On("Fail", mock.Anything, job.ID, tt.err.Error(), tt.requeue).Return(nil)

			f.svc.Process(context.Background(), job, 3)

			f.jobs.AssertExpectations(t)
		})
	}
}

func TestJobService_ProcessTakeoff(t *testing.T) {
	f := newJobFixture()
	payload, _ := json.Marshal(domain.TakeoffJobPayload{Images: []domain.PageImage{pngImage()}})
	job := &domain.Job{ID: uuid.New(), PlanID: uuid.New(), Kind: domain.JobKindTakeoff, Payload: payload, Attempts: 1}
	run := &domain.TakeoffRun{
		ID:     uuid.New(),
		PlanID: job.PlanID,
		Result: domain.MergedTakeoffResult{
			Items: []domain.MergedTakeoffItem{{ID: "item-001"}},
			Metadata: domain.MergeMetadata{
				DuplicatesRemoved: 1,
				ProviderErrors:    map[string]string{"gemini": "timeout"},
			},
		},
		ModelsUsed: domain.StringList{"claude-sonnet"},
	}
	f.takeoff.On("Analyze", mock.Anything, job.PlanID, mock.MatchedBy(func(id *uuid.UUID) bool {
		return id != nil && *id == job.ID
	}), mock.Anything).Return(run, nil)
	f.jobs.On("Complete", mock.Anything, job.ID, mock.Anything, []string{"gemini: timeout"}).Return(nil)

	f.svc.Process(context.Background(), job, 3)

	f.jobs.AssertExpectations(t)
}

func TestJobService_ProcessBadPayloadNotRequeued(t *testing.T) {
	f := newJobFixture()
	job := &domain.Job{ID: uuid.New(), PlanID: uuid.New(), Kind: domain.JobKindTakeoff, Payload: json.RawMessage(`{`), Attempts: 1}
	f.jobs.On("Fail", mock.Anything, job.ID, mock.Anything, false).Return(nil)

	f.svc.Process(context.Background(), job, 3)

	f.jobs.AssertExpectations(t)
	f.takeoff.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJobWorker_DispatchesClaimedJobs(t *testing.T) {
	jobs := new(mocks.MockJobRepo)
	svc := new(mocks.MockJobService)
	job := domain.Job{ID: uuid.New(), PlanID: uuid.New(), Kind: domain.JobKindIngest, Attempts: 1}

	done := make(chan struct{})
	jobs.On("ClaimQueued", mock.Anything, 2).Return([]domain.Job{job}, nil).Once()
	jobs.On("ClaimQueued", mock.Anything, mock.Anything).Return([]domain.Job{}, nil)
	svc.On("Process", mock.Anything, mock.MatchedBy(func(j *domain.Job) bool { return j.ID == job.ID }), 4).
		Run(func(mock.Arguments) { close(done) }).Return()

	w := service.NewJobWorker(jobs, svc, service.JobWorkerConfig{
		PollInterval: 5 * time.Millisecond,
		Concurrency:  2,
		MaxAttempts:  4,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not dispatched")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	svc.AssertNumberOfCalls(t, "Process", 1)
}
