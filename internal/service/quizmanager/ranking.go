package quizmanager

import (
	"sort"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// RankScores сортирует результаты инстанса (очки ↓, время ↑, id ↑) и проставляет ранги 1..N.
// Полный пересчет: ранги не зависят от предыдущих значений.
func RankScores(scores []entity.Score) []entity.Score {
	ranked := make([]entity.Score, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.TotalTimeMs != b.TotalTimeMs {
			return a.TotalTimeMs < b.TotalTimeMs
		}
		return a.ID < b.ID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// SelectQuestions выбирает до n вопросов равномерно без повторений (частичный Фишер–Йетс).
// Если пул меньше n, возвращается весь пул в случайном порядке.
func SelectQuestions(rng RandomSource, pool []entity.Question, n int) []entity.Question {
	if rng == nil {
		rng = DefaultRandom
	}
	items := make([]entity.Question, len(pool))
	copy(items, pool)
	if n > len(items) {
		n = len(items)
	}
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(items)-i)
		items[i], items[j] = items[j], items[i]
	}
	return items[:n]
}
