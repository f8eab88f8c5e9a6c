package quizmanager

import "github.com/ggza/trivia-core/internal/domain/entity"

// AdvanceStreak учитывает полное своевременное прохождение daily за день day.
// Следующий день подряд увеличивает серию, пропуск сбрасывает её в 1,
// повтор в тот же день ничего не меняет.
func AdvanceStreak(streak *entity.DailyStreak, day, previousDay string) {
	switch streak.LastDay {
	case day:
		return
	case previousDay:
		streak.CurrentStreak++
	default:
		streak.CurrentStreak = 1
	}
	streak.LastDay = day
	if streak.CurrentStreak > streak.BestStreak {
		streak.BestStreak = streak.CurrentStreak
	}
}

// ActiveStreak возвращает серию, если она не прервана (последний день — сегодня или вчера), иначе 0
func ActiveStreak(streak *entity.DailyStreak, day, previousDay string) int {
	if streak == nil {
		return 0
	}
	if streak.LastDay == day || streak.LastDay == previousDay {
		return streak.CurrentStreak
	}
	return 0
}
