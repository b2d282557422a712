package s3_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planbid/internal/domain"
	"planbid/internal/storage/s3"
	"planbid/mocks"
)

var errNoSuchKey = errors.New("NoSuchKey")

func TestPlanFileStore_Candidates(t *testing.T) {
	store := s3.NewPlanFileStore(new(mocks.MockObjectStorage), "plans", []string{"uploads", "plans"}, nil)

	t.Run("unprefixed key", func(t *testing.T) {
		got := store.Candidates(&domain.PlanDocument{StorageBucket: "tenant-a", StorageKey: "clinic.pdf"})
		assert.Equal(t, []s3.Location{
			{Bucket: "tenant-a", Key: "clinic.pdf"},
			{Bucket: "uploads", Key: "clinic.pdf"},
			{Bucket: "plans", Key: "clinic.pdf"},
			{Bucket: "tenant-a", Key: "plans/clinic.pdf"},
		}, got)
	})

	t.Run("prefixed key and default bucket", func(t *testing.T) {
		got := store.Candidates(&domain.PlanDocument{StorageKey: "/plans/clinic.pdf"})
		assert.Equal(t, []s3.Location{
			{Bucket: "plans", Key: "plans/clinic.pdf"},
			{Bucket: "uploads", Key: "plans/clinic.pdf"},
			{Bucket: "plans", Key: "clinic.pdf"},
		}, got)
	})

	t.Run("no key", func(t *testing.T) {
		assert.Empty(t, store.Candidates(&domain.PlanDocument{StorageBucket: "plans"}))
	})
}

func TestPlanFileStore_FetchPrimary(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	storage.On("Download", mock.Anything, "plans", "clinic.pdf").Return([]byte("%PDF"), nil)

	data, err := s3.NewPlanFileStore(storage, "plans", []string{"uploads"}, nil).
		Fetch(context.Background(), &domain.PlanDocument{ID: uuid.New(), StorageBucket: "plans", StorageKey: "clinic.pdf"})

	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
	storage.AssertNumberOfCalls(t, "Download", 1)
}

func TestPlanFileStore_FetchFallsBack(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	storage.On("Download", mock.Anything, "plans", "clinic.pdf").Return(nil, errNoSuchKey)
	storage.On("Download", mock.Anything, "uploads", "clinic.pdf").Return([]byte{}, nil)
	storage.On("Download", mock.Anything, "plans", "plans/clinic.pdf").Return([]byte("%PDF"), nil)

	data, err := s3.NewPlanFileStore(storage, "plans", []string{"uploads"}, nil).
		Fetch(context.Background(), &domain.PlanDocument{ID: uuid.New(), StorageBucket: "plans", StorageKey: "clinic.pdf"})

	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
	storage.AssertNumberOfCalls(t, "Download", 3)
}

func TestPlanFileStore_FetchAllFail(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	storage.On("Download", mock.Anything, mock.Anything, mock.Anything).Return(nil, errNoSuchKey)

	_, err := s3.NewPlanFileStore(storage, "plans", []string{"uploads"}, nil).
		Fetch(context.Background(), &domain.PlanDocument{ID: uuid.New(), StorageBucket: "plans", StorageKey: "clinic.pdf"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPlanFileUnavailable)
	assert.Contains(t, err.Error(), "plans/clinic.pdf")
	assert.Contains(t, err.Error(), "uploads/clinic.pdf")
	assert.Contains(t, err.Error(), "plans/plans/clinic.pdf")
	storage.AssertNumberOfCalls(t, "Download", 3)
}

func TestPlanFileStore_FetchNoKey(t *testing.T) {
	storage := new(mocks.MockObjectStorage)

	_, err := s3.NewPlanFileStore(storage, "plans", nil, nil).
		Fetch(context.Background(), &domain.PlanDocument{ID: uuid.New()})

	assert.ErrorIs(t, err, domain.ErrPlanFileUnavailable)
	storage.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything)
}
