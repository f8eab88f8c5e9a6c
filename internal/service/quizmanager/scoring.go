package quizmanager

import (
	"math"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// Множители серии ежедневных челленджей
const (
	StreakMultiplierBase  = 1.0
	StreakMultiplierThree = 1.5
	StreakMultiplierSeven = 2.0
	streakThresholdThree  = 3
	streakThresholdSeven  = 7
)

// ScoreInput — агрегат ответов одной попытки
type ScoreInput struct {
	CorrectCount  int
	AnsweredCount int
	SkippedCount  int // ответы без выбора (таймаут)
	QuestionCount int
	TotalTimeMs   int64
}

// FullRun: отвечены все вопросы и ни один не пропущен
func (in ScoreInput) FullRun() bool {
	return in.QuestionCount > 0 && in.AnsweredCount >= in.QuestionCount && in.SkippedCount == 0
}

// TallyResponses суммирует ответы одной попытки
func TallyResponses(responses []entity.Response, questionCount int) ScoreInput {
	in := ScoreInput{QuestionCount: questionCount}
	for _, r := range responses {
		in.AnsweredCount++
		in.TotalTimeMs += r.ElapsedMs
		if r.SelectedIndex == nil {
			in.SkippedCount++
		}
		if r.IsCorrect {
			in.CorrectCount++
		}
	}
	return in
}

// GroupResponsesByUser раскладывает ответы инстанса по пользователям
func GroupResponsesByUser(responses []entity.Response) map[uint][]entity.Response {
	grouped := make(map[uint][]entity.Response)
	for _, r := range responses {
		grouped[r.UserID] = append(grouped[r.UserID], r)
	}
	return grouped
}

// ClampElapsed ограничивает время ответа сверху лимитом режима.
// Нижняя граница не применяется: нулевое и отрицательное время принимаются как есть.
func ClampElapsed(elapsedMs, limitMs int64) int64 {
	if limitMs > 0 && elapsedMs > limitMs {
		return limitMs
	}
	return elapsedMs
}

// LivePoints: очки live-викторины = правильные × очки за правильный ответ (по умолчанию 10)
func LivePoints(correct, pointsPerCorrect int) int {
	if pointsPerCorrect <= 0 {
		pointsPerCorrect = DefaultPointsPerCorrect
	}
	return correct * pointsPerCorrect
}

// PracticeXP: XP за тренировку начисляется всегда, даже при 0% правильных
func PracticeXP(correct, xpPerCorrect, completionBonus int) int {
	return correct*xpPerCorrect + completionBonus
}

// StreakMultiplier возвращает множитель для текущей серии
func StreakMultiplier(streak int) float64 {
	switch {
	case streak >= streakThresholdSeven:
		return StreakMultiplierSeven
	case streak >= streakThresholdThree:
		return StreakMultiplierThree
	default:
		return StreakMultiplierBase
	}
}

// ApplyMultiplier округляет xp × m до целого
func ApplyMultiplier(xp int, m float64) int {
	return int(math.Round(float64(xp) * m))
}

// DailyXP = round((xpReward + correct × xpPerCorrect) × streakMultiplier)
func DailyXP(xpReward, correct, xpPerCorrect, streak int) int {
	return ApplyMultiplier(xpReward+correct*xpPerCorrect, StreakMultiplier(streak))
}

// FlashXP = round((xpReward + бонус) × correct/count).
// Бонус только за идеальный проход со средним временем не выше порога;
// на точность масштабируется вся награда, включая бонус.
func FlashXP(xpReward, bonusXP int, bonusThresholdMs int64, in ScoreInput) int {
	if in.QuestionCount <= 0 {
		return 0
	}
	reward := xpReward
	allCorrect := in.CorrectCount == in.QuestionCount
	avgTimeMs := float64(in.TotalTimeMs) / float64(in.QuestionCount)
	if allCorrect && avgTimeMs <= float64(bonusThresholdMs) {
		reward += bonusXP
	}
	return int(math.Round(float64(reward) * float64(in.CorrectCount) / float64(in.QuestionCount)))
}
