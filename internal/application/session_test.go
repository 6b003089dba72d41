package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/infrastructure/storage"
	apperrors "eicr-vision/internal/platform/errors"
)

func TestSessionService_Transitions(t *testing.T) {
	svc := NewSessionService(storage.NewMemorySessionRepository())
	ctx := context.Background()

	s, err := svc.BeginCapture(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateCapturing, s.State)

	s, err = svc.BeginAnalysis(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, s.Busy())

	s, err = svc.Review(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateReviewing, s.State)

	s, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, s.State)
}

func TestSessionService_OneAnalysisAtATime(t *testing.T) {
	svc := NewSessionService(storage.NewMemorySessionRepository())
	ctx := context.Background()

	require.False(t, svc.Busy(ctx, 1, 10))
	_, err := svc.BeginAnalysis(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, svc.Busy(ctx, 1, 10))

	_, err = svc.BeginAnalysis(ctx, 1, 10)
	require.True(t, apperrors.IsKind(err, apperrors.KindInput))

	// other sessions are not affected
	_, err = svc.BeginAnalysis(ctx, 2, 20)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.False(t, svc.Busy(ctx, 1, 10))
	_, err = svc.BeginAnalysis(ctx, 1, 10)
	require.NoError(t, err)
}

func TestSessionService_ReturnsSnapshots(t *testing.T) {
	svc := NewSessionService(storage.NewMemorySessionRepository())
	ctx := context.Background()

	s, err := svc.Get(ctx, 1, 10)
	require.NoError(t, err)
	s.SetState(entity.StateAnalyzing)

	require.False(t, svc.Busy(ctx, 1, 10))
}
