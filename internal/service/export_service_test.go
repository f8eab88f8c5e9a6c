package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

func readSheet(t *testing.T, buf *bytes.Buffer, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err, "Выгрузка должна открываться как XLSX")
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExportService_WriteInstanceResults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instance, a, b := playLive(t, env)
	export := NewExportService(env.scoring, env.leaderboard)

	var buf bytes.Buffer
	require.NoError(t, export.WriteInstanceResults(ctx, instance.ID, &buf))

	rows := readSheet(t, &buf, "Результаты")
	require.Len(t, rows, 3, "Заголовок и две строки")
	assert.Equal(t, "Место", rows[0][0])
	assert.Equal(t, []string{"1", a.Username, "20", "2", "2200"}, rows[1])
	assert.Equal(t, []string{"2", b.Username, "20", "2", "2500"}, rows[2])
}

func TestExportService_WriteLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game := env.game(t, "trivia", 0)
	user := env.user(t, "100")
	foldPoints(t, env, game, user, 50, 1000)
	foldPoints(t, env, game, user, 30, 3000)

	export := NewExportService(env.scoring, env.leaderboard)
	var buf bytes.Buffer
	require.NoError(t, export.WriteLeaderboard(ctx, "trivia", entity.PeriodWeekly, "", &buf))

	rows := readSheet(t, &buf, "2024-W07")
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "80", rows[1][2], "Сумма двух лучших")
	assert.Equal(t, "2", rows[1][4])
}

func TestSanitizeForExcel(t *testing.T) {
	assert.Equal(t, "'=HYPERLINK(1)", sanitizeForExcel("=HYPERLINK(1)"))
	assert.Equal(t, "'@cmd", sanitizeForExcel("@cmd"))
	assert.Equal(t, "player", sanitizeForExcel("player"))
	assert.Equal(t, "", sanitizeForExcel(""))
}
