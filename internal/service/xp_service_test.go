package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggza/trivia-core/internal/domain/entity"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
)

func TestXPService_Grant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, "100")

	updated, err := env.xp.Grant(ctx, user.ID, 120, "event prize")
	require.NoError(t, err)
	assert.Equal(t, int64(120), updated.XP)
	assert.Equal(t, 2, updated.Level, "120 XP — второй уровень")

	updated, err = env.xp.Grant(ctx, user.ID, 400, "event prize")
	require.NoError(t, err)
	assert.Equal(t, int64(520), updated.XP)
	assert.Equal(t, 4, updated.Level)

	updated, err = env.xp.Grant(ctx, user.ID, -1000, "penalty")
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.XP, "XP не уходит ниже нуля")
	assert.Equal(t, 1, updated.Level)

	stored, err := env.users.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.XP)
	assert.Equal(t, 1, stored.Level)
}

func TestXPService_Grant_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, "100")

	_, err := env.xp.Grant(ctx, user.ID, 0, "nothing")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.xp.Grant(ctx, user.ID, 10, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.xp.Grant(ctx, 99999, 10, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestXPService_GetProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, "100")

	_, err := env.xp.Grant(ctx, user.ID, 50, "first")
	require.NoError(t, err)
	_, err = env.xp.Grant(ctx, user.ID, 125, "second")
	require.NoError(t, err)

	progress, err := env.xp.GetProgress(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(175), progress.XP)
	assert.Equal(t, 2, progress.Level.Level)
	assert.Equal(t, int64(100), progress.Level.CurrentLevelFloor)
	require.NotNil(t, progress.Level.NextLevelFloor)
	assert.Equal(t, int64(250), *progress.Level.NextLevelFloor)
	assert.InDelta(t, 50.0, progress.Level.ProgressPercent, 0.001)

	require.Len(t, progress.Recent, 2)
	assert.Equal(t, "second", progress.Recent[0].Reason, "Последние начисления идут первыми")
	assert.Equal(t, entity.XPSourceAdmin, progress.Recent[0].SourceType)
}

func TestXPService_Levels(t *testing.T) {
	env := newTestEnv(t)
	levels := env.xp.Levels()
	require.NotEmpty(t, levels)
	assert.Equal(t, int64(0), levels[0].XPRequired, "Первый уровень начинается с нуля")

	levels[0].Title = "changed"
	assert.NotEqual(t, "changed", env.xp.Levels()[0].Title, "Таблица уровней не изменяется через копию")
}
