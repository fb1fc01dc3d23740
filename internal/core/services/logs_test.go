package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodcell-inference-service/internal/core/domain"
	"bloodcell-inference-service/internal/testutil"
)

func TestLogService_List(t *testing.T) {
	store := new(testutil.MockRequestLogStore)
	svc := NewLogService(store)

	files := []domain.LogFile{{Filename: "b.log", Modified: time.Now()}, {Filename: "a.log"}}
	store.On("List").Return(files, nil)

	got, err := svc.List()
	require.NoError(t, err)
	assert.Equal(t, files, got)
}

func TestLogService_Read(t *testing.T) {
	store := new(testutil.MockRequestLogStore)
	svc := NewLogService(store)

	store.On("Read", "missing.log").Return("", domain.ErrLogNotFound)

	_, err := svc.Read("missing.log")
	assert.ErrorIs(t, err, domain.ErrLogNotFound)
}

func TestLogService_Cleanup(t *testing.T) {
	store := new(testutil.MockRequestLogStore)
	svc := NewLogService(store)

	store.On("Cleanup", 7).Return(3, nil)

	n, err := svc.Cleanup(7)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = svc.Cleanup(-1)
	assert.ErrorIs(t, err, domain.ErrInvalidDays)
	store.AssertNumberOfCalls(t, "Cleanup", 1)
}
