package repository

import "context"

// Repositories — набор репозиториев, привязанных к одному соединению или транзакции
type Repositories struct {
	Games       GameRepository
	Questions   QuestionRepository
	Instances   InstanceRepository
	Assignments AssignmentRepository
	Attempts    AttemptRepository
	Responses   ResponseRepository
	Scores      ScoreRepository
	Leaderboard LeaderboardRepository
	Users       UserRepository
	XP          XPTransactionRepository
	Streaks     StreakRepository
}

// Transactor выполняет fn в одной транзакции БД.
// Ошибка из fn откатывает транзакцию и возвращается как есть.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(r *Repositories) error) error
}
