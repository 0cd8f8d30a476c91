package jobs

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yigit/coursecred/internal/app/models"
)

type mockBackfiller struct {
	mock.Mock
}

func (m *mockBackfiller) BackfillCompleted(ctx context.Context, limit int) (*models.BackfillResult, error) {
	args := m.Called(ctx, limit)
	res, _ := args.Get(0).(*models.BackfillResult)
	return res, args.Error(1)
}

type mockRecalculator struct {
	mock.Mock
}

func (m *mockRecalculator) RecalculateAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestNewScheduler_RegistersConfiguredJobs(t *testing.T) {
	s, err := NewScheduler(&mockBackfiller{}, &mockRecalculator{}, Config{
		BackfillSchedule: "@every 1h",
		RecalcSchedule:   "0 3 * * *",
	})
	require.NoError(t, err)

	jobs := s.Jobs()
	sort.Strings(jobs)
	assert.Equal(t, []string{"certificate-backfill", "progress-recalculation"}, jobs)

	s, err = NewScheduler(&mockBackfiller{}, &mockRecalculator{}, Config{BackfillSchedule: "@every 1h"})
	require.NoError(t, err)
	assert.Equal(t, []string{"certificate-backfill"}, s.Jobs())
}

func TestNewScheduler_RejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler(&mockBackfiller{}, nil, Config{BackfillSchedule: "every now and then"})
	assert.ErrorContains(t, err, "certificate-backfill")
}

func TestRunBackfill_UsesConfiguredLimit(t *testing.T) {
	b := &mockBackfiller{}
	b.On("BackfillCompleted", mock.Anything, 25).Return(&models.BackfillResult{Scanned: 3, Issued: 3}, nil).Once()

	s, err := NewScheduler(b, nil, Config{BackfillLimit: 25})
	require.NoError(t, err)

	res, err := s.RunBackfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Issued)
	b.AssertExpectations(t)
}

func TestRunRecalculation(t *testing.T) {
	r := &mockRecalculator{}
	r.On("RecalculateAll", mock.Anything).Return(0, errors.New("db down")).Once()

	s, err := NewScheduler(nil, r, Config{})
	require.NoError(t, err)

	_, err = s.RunRecalculation(context.Background())
	assert.EqualError(t, err, "db down")
	r.AssertExpectations(t)
}

func TestScheduler_RunsJobs(t *testing.T) {
	b := &mockBackfiller{}
	ran := make(chan struct{}, 10)
	b.On("BackfillCompleted", mock.Anything, 10).Return(&models.BackfillResult{}, nil).Run(func(mock.Arguments) {
		ran <- struct{}{}
	})

	s, err := NewScheduler(b, nil, Config{BackfillSchedule: "@every 1s", BackfillLimit: 10})
	require.NoError(t, err)
	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("back-fill job did not run")
	}
}
