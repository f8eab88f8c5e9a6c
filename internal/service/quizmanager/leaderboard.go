package quizmanager

import (
	"sort"
	"time"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// BestScoresLimit — сколько лучших результатов периода входят в сумму
const BestScoresLimit = 2

// TopScores — ограниченная отсортированная по убыванию коллекция лучших результатов
type TopScores []int

// Push добавляет результат и оставляет не более limit лучших
func (t TopScores) Push(score, limit int) TopScores {
	merged := make([]int, 0, len(t)+1)
	merged = append(merged, t...)
	merged = append(merged, score)
	sort.Sort(sort.Reverse(sort.IntSlice(merged)))
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// Sum возвращает сумму результатов
func (t TopScores) Sum() int {
	total := 0
	for _, s := range t {
		total += s
	}
	return total
}

// FoldScore учитывает новый результат в записи лидерборда по правилу двух лучших.
// Пустая запись (QuizzesPlayed == 0) обрабатывается как создание.
func FoldScore(entry *entity.LeaderboardEntry, points int, timeMs int64, at time.Time) {
	prevTotal := entry.TotalPoints
	isNew := entry.QuizzesPlayed == 0

	best := TopScores(entry.BestTwoScores).Push(points, BestScoresLimit)
	entry.BestTwoScores = entity.IntList(best)
	entry.TotalPoints = best.Sum()

	if isNew || points > entry.BestScore {
		entry.BestScore = points
	}

	entry.QuizzesPlayed++
	n := float64(entry.QuizzesPlayed)
	entry.AverageTimeMs = (entry.AverageTimeMs*(n-1) + float64(timeMs)) / n

	if isNew || entry.TotalPoints != prevTotal {
		entry.AchievedAt = at
	}
}

// LessLeaderboard — порядок чтения лидерборда: очки по убыванию, среднее время по возрастанию,
// затем более ранний момент достижения суммы, затем user_id
func LessLeaderboard(a, b *entity.LeaderboardEntry) bool {
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints
	}
	if a.AverageTimeMs != b.AverageTimeMs {
		return a.AverageTimeMs < b.AverageTimeMs
	}
	if !a.AchievedAt.Equal(b.AchievedAt) {
		return a.AchievedAt.Before(b.AchievedAt)
	}
	return a.UserID < b.UserID
}
