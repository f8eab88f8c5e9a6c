package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ggza/trivia-core/internal/config"
	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/domain/repository"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	redisrepo "github.com/ggza/trivia-core/internal/repository/redis"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
)

// ============================================================================
// In-memory хранилище с семантикой уникальных индексов PostgreSQL
// ============================================================================

type streakKey struct{ userID, gameID uint }

type memDB struct {
	mu     sync.Mutex
	nextID uint
	rows   rowLocks

	games       map[uint]entity.Game
	questions   map[uint]entity.Question
	instances   map[uint]entity.QuizInstance
	assignments map[uint]entity.QuestionAssignment
	attempts    map[uint]entity.Attempt
	responses   map[uint]entity.Response
	scores      map[uint]entity.Score
	leaderboard map[repository.LeaderboardKey]entity.LeaderboardEntry
	users       map[uint]entity.User
	xp          []entity.XPTransaction
	streaks     map[streakKey]entity.DailyStreak
}

func newMemDB() *memDB {
	return &memDB{
		games:       make(map[uint]entity.Game),
		questions:   make(map[uint]entity.Question),
		instances:   make(map[uint]entity.QuizInstance),
		assignments: make(map[uint]entity.QuestionAssignment),
		attempts:    make(map[uint]entity.Attempt),
		responses:   make(map[uint]entity.Response),
		scores:      make(map[uint]entity.Score),
		leaderboard: make(map[repository.LeaderboardKey]entity.LeaderboardEntry),
		users:       make(map[uint]entity.User),
		streaks:     make(map[streakKey]entity.DailyStreak),
	}
}

func (db *memDB) id() uint {
	db.nextID++
	return db.nextID
}

// repos — репозитории вне транзакции: блокировка строки снимается сразу
func (db *memDB) repos() *repository.Repositories {
	return db.reposIn(nil)
}

func (db *memDB) reposIn(tx *txLocks) *repository.Repositories {
	return &repository.Repositories{
		Games:       &memGames{db},
		Questions:   &memQuestions{db},
		Instances:   &memInstances{db: db, tx: tx},
		Assignments: &memAssignments{db},
		Attempts:    &memAttempts{db: db, tx: tx},
		Responses:   &memResponses{db},
		Scores:      &memScores{db},
		Leaderboard: &memLeaderboard{db: db, tx: tx},
		Users:       &memUsers{db: db, tx: tx},
		XP:          &memXP{db},
		Streaks:     &memStreaks{db: db, tx: tx},
	}
}

// rowLocks — блокировки строк по ключу "таблица:id"
type rowLocks struct {
	mu    sync.Mutex
	byKey map[string]*sync.RWMutex
}

func (l *rowLocks) get(key string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.byKey == nil {
		l.byKey = make(map[string]*sync.RWMutex)
	}
	m, ok := l.byKey[key]
	if !ok {
		m = &sync.RWMutex{}
		l.byKey[key] = m
	}
	return m
}

// txLocks — блокировки, взятые одной транзакцией; снимаются при ее завершении.
// Повторная блокировка той же строки в транзакции ничего не делает.
type txLocks struct {
	held map[string]func()
}

// lockRow эмулирует SELECT ... FOR UPDATE (shared=false) и FOR SHARE (shared=true)
func (db *memDB) lockRow(tx *txLocks, key string, shared bool) {
	m := db.rows.get(key)
	lock, unlock := m.Lock, m.Unlock
	if shared {
		lock, unlock = m.RLock, m.RUnlock
	}
	if tx == nil {
		lock()
		unlock()
		return
	}
	if _, ok := tx.held[key]; ok {
		return
	}
	lock()
	tx.held[key] = unlock
}

func (tx *txLocks) release() {
	for key, unlock := range tx.held {
		unlock()
		delete(tx.held, key)
	}
}

// memTx выполняет fn без отката, но держит блокировки строк до конца fn
type memTx struct{ db *memDB }

func (t memTx) WithinTx(ctx context.Context, fn func(r *repository.Repositories) error) error {
	tx := &txLocks{held: make(map[string]func())}
	defer tx.release()
	return fn(t.db.reposIn(tx))
}

// --- games ---

type memGames struct{ db *memDB }

func (r *memGames) Create(ctx context.Context, game *entity.Game) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.games {
		if g.Slug == game.Slug {
			return apperrors.ErrConflict
		}
	}
	game.ID = r.db.id()
	r.db.games[game.ID] = *game
	return nil
}

func (r *memGames) GetByID(ctx context.Context, id uint) (*entity.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.games[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &g, nil
}

func (r *memGames) GetBySlug(ctx context.Context, slug string) (*entity.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.games {
		if g.Slug == slug {
			g := g
			return &g, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memGames) List(ctx context.Context) ([]entity.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]entity.Game, 0, len(r.db.games))
	for _, g := range r.db.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- questions ---

type memQuestions struct{ db *memDB }

func (r *memQuestions) Create(ctx context.Context, q *entity.Question) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q.ID = r.db.id()
	r.db.questions[q.ID] = *q
	return nil
}

func (r *memQuestions) CreateBatch(ctx context.Context, questions []entity.Question) error {
	for i := range questions {
		if err := r.Create(ctx, &questions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memQuestions) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q, ok := r.db.questions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &q, nil
}

func (r *memQuestions) GetByIDs(ctx context.Context, ids []uint) ([]entity.Question, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []entity.Question
	for _, id := range ids {
		if q, ok := r.db.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *memQuestions) ListActiveByGame(ctx context.Context, gameID uint) ([]entity.Question, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []entity.Question
	for _, q := range r.db.questions {
		if q.GameID == gameID && q.IsActive {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memQuestions) IncrementUsage(ctx context.Context, questionID uint, correct bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q := r.db.questions[questionID]
	q.TimesUsed++
	if correct {
		q.TimesCorrect++
	}
	r.db.questions[questionID] = q
	return nil
}

func (r *memQuestions) Deactivate(ctx context.Context, id uint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q := r.db.questions[id]
	q.IsActive = false
	r.db.questions[id] = q
	return nil
}

// --- instances ---

type memInstances struct {
	db *memDB
	tx *txLocks
}

func (r *memInstances) Create(ctx context.Context, instance *entity.QuizInstance) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	instance.ID = r.db.id()
	stored := *instance
	stored.Assignments = nil
	r.db.instances[instance.ID] = stored
	return nil
}

func (r *memInstances) CreateIfAbsent(ctx context.Context, instance *entity.QuizInstance) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if instance.BucketKey != nil {
		for _, existing := range r.db.instances {
			if existing.GameID == instance.GameID && existing.Mode == instance.Mode &&
				existing.BucketKey != nil && *existing.BucketKey == *instance.BucketKey {
				return false, nil
			}
		}
	}
	instance.ID = r.db.id()
	stored := *instance
	stored.Assignments = nil
	r.db.instances[instance.ID] = stored
	return true, nil
}

func (r *memInstances) GetByID(ctx context.Context, id uint) (*entity.QuizInstance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	instance, ok := r.db.instances[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &instance, nil
}

func (r *memInstances) GetByIDForUpdate(ctx context.Context, id uint) (*entity.QuizInstance, error) {
	r.db.lockRow(r.tx, fmt.Sprintf("instance:%d", id), false)
	return r.GetByID(ctx, id)
}

func (r *memInstances) GetByIDForShare(ctx context.Context, id uint) (*entity.QuizInstance, error) {
	r.db.lockRow(r.tx, fmt.Sprintf("instance:%d", id), true)
	return r.GetByID(ctx, id)
}

func (r *memInstances) GetByBucket(ctx context.Context, gameID uint, mode, bucketKey string) (*entity.QuizInstance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, instance := range r.db.instances {
		if instance.GameID == gameID && instance.Mode == mode && instance.BucketKey != nil && *instance.BucketKey == bucketKey {
			instance := instance
			return &instance, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memInstances) FindCurrentLive(ctx context.Context, gameID uint) (*entity.QuizInstance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var best *entity.QuizInstance
	for _, instance := range r.db.instances {
		if instance.GameID != gameID || instance.Mode != entity.ModeLive {
			continue
		}
		if instance.Status != entity.InstanceStatusLive && instance.Status != entity.InstanceStatusScheduled {
			continue
		}
		instance := instance
		switch {
		case best == nil:
			best = &instance
		case instance.IsLive() && !best.IsLive():
			best = &instance
		case instance.IsLive() == best.IsLive() && instance.ScheduledAt.Before(best.ScheduledAt):
			best = &instance
		}
	}
	if best == nil {
		return nil, apperrors.ErrNotFound
	}
	return best, nil
}

func (r *memInstances) ListByGame(ctx context.Context, gameID uint, limit, offset int) ([]entity.QuizInstance, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []entity.QuizInstance
	for _, instance := range r.db.instances {
		if instance.GameID == gameID {
			all = append(all, instance)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []entity.QuizInstance{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *memInstances) Update(ctx context.Context, instance *entity.QuizInstance) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored := *instance
	stored.Assignments = nil
	r.db.instances[instance.ID] = stored
	return nil
}

func (r *memInstances) AdvanceQuestion(ctx context.Context, id uint) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	instance, ok := r.db.instances[id]
	if !ok || !instance.IsLive() || instance.CurrentQuestion >= instance.QuestionCount {
		return false, nil
	}
	instance.CurrentQuestion++
	r.db.instances[id] = instance
	return true, nil
}

// --- assignments ---

type memAssignments struct{ db *memDB }

func (r *memAssignments) CreateBatch(ctx context.Context, assignments []entity.QuestionAssignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range assignments {
		for _, existing := range r.db.assignments {
			if existing.InstanceID == a.InstanceID && (existing.Position == a.Position || existing.QuestionID == a.QuestionID) {
				return apperrors.ErrConflict
			}
		}
	}
	for i := range assignments {
		assignments[i].ID = r.db.id()
		stored := assignments[i]
		stored.Question = nil
		r.db.assignments[stored.ID] = stored
	}
	return nil
}

func (r *memAssignments) withQuestion(a entity.QuestionAssignment) entity.QuestionAssignment {
	if q, ok := r.db.questions[a.QuestionID]; ok {
		a.Question = &q
	}
	return a
}

func (r *memAssignments) GetByID(ctx context.Context, id uint) (*entity.QuestionAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.assignments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	a = r.withQuestion(a)
	return &a, nil
}

func (r *memAssignments) ListByInstance(ctx context.Context, instanceID uint) ([]entity.QuestionAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []entity.QuestionAssignment
	for _, a := range r.db.assignments {
		if a.InstanceID == instanceID {
			out = append(out, r.withQuestion(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memAssignments) CountByInstance(ctx context.Context, instanceID uint) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, a := range r.db.assignments {
		if a.InstanceID == instanceID {
			n++
		}
	}
	return n, nil
}

// --- attempts ---

type memAttempts struct {
	db *memDB
	tx *txLocks
}

func (r *memAttempts) CreateIfAbsent(ctx context.Context, attempt *entity.Attempt) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.attempts {
		if existing.UserID == attempt.UserID && existing.InstanceID == attempt.InstanceID {
			return false, nil
		}
	}
	attempt.ID = r.db.id()
	attempt.CreatedAt = time.Now()
	r.db.attempts[attempt.ID] = *attempt
	return true, nil
}

func (r *memAttempts) GetByID(ctx context.Context, id uint) (*entity.Attempt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.attempts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &a, nil
}

func (r *memAttempts) GetByIDForUpdate(ctx context.Context, id uint) (*entity.Attempt, error) {
	r.db.lockRow(r.tx, fmt.Sprintf("attempt:%d", id), false)
	return r.GetByID(ctx, id)
}

func (r *memAttempts) GetByUserAndInstance(ctx context.Context, userID, instanceID uint) (*entity.Attempt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.attempts {
		if a.UserID == userID && a.InstanceID == instanceID {
			a := a
			return &a, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memAttempts) ListByInstance(ctx context.Context, instanceID uint) ([]entity.Attempt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []entity.Attempt
	for _, a := range r.db.attempts {
		if a.InstanceID == instanceID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memAttempts) Update(ctx context.Context, attempt *entity.Attempt) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.attempts[attempt.ID] = *attempt
	return nil
}

// --- responses ---

type memResponses struct{ db *memDB }

func (r *memResponses) CreateIfAbsent(ctx context.Context, response *entity.Response) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.responses {
		if existing.AttemptID == response.AttemptID && existing.AssignmentID == response.AssignmentID {
			return false, nil
		}
	}
	response.ID = r.db.id()
	r.db.responses[response.ID] = *response
	return true, nil
}

func (r *memResponses) GetByAttemptAndAssignment(ctx context.Context, attemptID, assignmentID uint) (*entity.Response, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, resp := range r.db.responses {
		if resp.AttemptID == attemptID && resp.AssignmentID == assignmentID {
			resp := resp
			return &resp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memResponses) list(match func(entity.Response) bool) []entity.Response {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []entity.Response
	for _, resp := range r.db.responses {
		if match(resp) {
			out = append(out, resp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memResponses) ListByAttempt(ctx context.Context, attemptID uint) ([]entity.Response, error) {
	return r.list(func(resp entity.Response) bool { return resp.AttemptID == attemptID }), nil
}

func (r *memResponses) ListByInstance(ctx context.Context, instanceID uint) ([]entity.Response, error) {
	return r.list(func(resp entity.Response) bool { return resp.InstanceID == instanceID }), nil
}

// --- scores ---

type memScores struct{ db *memDB }

func (r *memScores) Upsert(ctx context.Context, score *entity.Score) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, existing := range r.db.scores {
		if existing.InstanceID == score.InstanceID && existing.UserID == score.UserID {
			existing.Points = score.Points
			existing.CorrectCount = score.CorrectCount
			existing.QuestionCount = score.QuestionCount
			existing.TotalTimeMs = score.TotalTimeMs
			r.db.scores[id] = existing
			*score = existing
			return nil
		}
	}
	score.ID = r.db.id()
	r.db.scores[score.ID] = *score
	return nil
}

func (r *memScores) GetByInstanceAndUser(ctx context.Context, instanceID, userID uint) (*entity.Score, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.scores {
		if s.InstanceID == instanceID && s.UserID == userID {
			s := s
			return &s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memScores) ListByInstance(ctx context.Context, instanceID uint, forUpdate bool) ([]entity.Score, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []entity.Score
	for _, s := range r.db.scores {
		if s.InstanceID == instanceID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memScores) UpdateRank(ctx context.Context, scoreID uint, rank int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := r.db.scores[scoreID]
	s.Rank = rank
	r.db.scores[scoreID] = s
	return nil
}

func (r *memScores) ClaimAggregation(ctx context.Context, scoreID uint, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.scores[scoreID]
	if !ok || s.AggregatedAt != nil {
		return false, nil
	}
	s.AggregatedAt = &at
	r.db.scores[scoreID] = s
	return true, nil
}

func (r *memScores) ListPendingAggregation(ctx context.Context, instanceID uint) ([]entity.Score, error) {
	all, _ := r.ListByInstance(ctx, instanceID, false)
	var out []entity.Score
	for _, s := range all {
		if s.AggregatedAt == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memScores) ListAggregatedBetween(ctx context.Context, gameID uint, from, to time.Time) ([]entity.Score, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []entity.Score
	for _, s := range r.db.scores {
		if s.GameID == gameID && s.AggregatedAt != nil && !s.AggregatedAt.Before(from) && s.AggregatedAt.Before(to) &&
			s.Mode != entity.ModePractice {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AggregatedAt.Before(*out[j].AggregatedAt) })
	return out, nil
}

// --- leaderboard ---

type memLeaderboard struct {
	db *memDB
	tx *txLocks
}

func (r *memLeaderboard) LockOrCreate(ctx context.Context, key repository.LeaderboardKey) (*entity.LeaderboardEntry, error) {
	r.db.lockRow(r.tx, fmt.Sprintf("leaderboard:%d:%d:%s:%s", key.GameID, key.UserID, key.PeriodType, key.PeriodKey), false)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entry, ok := r.db.leaderboard[key]
	if !ok {
		entry = entity.LeaderboardEntry{
			ID:            r.db.id(),
			GameID:        key.GameID,
			UserID:        key.UserID,
			PeriodType:    key.PeriodType,
			PeriodKey:     key.PeriodKey,
			BestTwoScores: entity.IntList{},
		}
		r.db.leaderboard[key] = entry
	}
	entry.BestTwoScores = append(entity.IntList{}, entry.BestTwoScores...)
	return &entry, nil
}

func (r *memLeaderboard) Save(ctx context.Context, entry *entity.LeaderboardEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.leaderboard[leaderboardKeyOf(entry)] = *entry
	return nil
}

func leaderboardKeyOf(e *entity.LeaderboardEntry) repository.LeaderboardKey {
	return repository.LeaderboardKey{GameID: e.GameID, UserID: e.UserID, PeriodType: e.PeriodType, PeriodKey: e.PeriodKey}
}

func (r *memLeaderboard) ListRanked(ctx context.Context, gameID uint, periodType, periodKey string, limit, offset int) ([]repository.LeaderboardRow, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var entries []entity.LeaderboardEntry
	for _, e := range r.db.leaderboard {
		if e.GameID == gameID && e.PeriodType == periodType && e.PeriodKey == periodKey && e.QuizzesPlayed > 0 {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return quizmanager.LessLeaderboard(&entries[i], &entries[j]) })
	total := int64(len(entries))

	rows := []repository.LeaderboardRow{}
	for i := offset; i < len(entries) && i < offset+limit; i++ {
		u := r.db.users[entries[i].UserID]
		rows = append(rows, repository.LeaderboardRow{LeaderboardEntry: entries[i], Username: u.Username, AvatarURL: u.AvatarURL})
	}
	return rows, total, nil
}

func (r *memLeaderboard) DeletePeriod(ctx context.Context, gameID uint, periodType, periodKey string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for k := range r.db.leaderboard {
		if k.GameID == gameID && k.PeriodType == periodType && k.PeriodKey == periodKey {
			delete(r.db.leaderboard, k)
		}
	}
	return nil
}

func (r *memLeaderboard) CreateBatch(ctx context.Context, entries []entity.LeaderboardEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range entries {
		entries[i].ID = r.db.id()
		r.db.leaderboard[leaderboardKeyOf(&entries[i])] = entries[i]
	}
	return nil
}

// --- users ---

type memUsers struct {
	db *memDB
	tx *txLocks
}

func (r *memUsers) UpsertIdentity(ctx context.Context, user *entity.User) (*entity.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, existing := range r.db.users {
		if existing.DiscordID == user.DiscordID {
			existing.Username = user.Username
			existing.AvatarURL = user.AvatarURL
			existing.IsVerified = user.IsVerified
			r.db.users[id] = existing
			return &existing, nil
		}
	}
	stored := *user
	stored.ID = r.db.id()
	if stored.Role == "" {
		stored.Role = entity.RoleUser
	}
	if stored.Level == 0 {
		stored.Level = 1
	}
	r.db.users[stored.ID] = stored
	return &stored, nil
}

func (r *memUsers) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (r *memUsers) GetByIDForUpdate(ctx context.Context, id uint) (*entity.User, error) {
	r.db.lockRow(r.tx, fmt.Sprintf("user:%d", id), false)
	return r.GetByID(ctx, id)
}

func (r *memUsers) UpdateProgress(ctx context.Context, userID uint, xp int64, level int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.XP = xp
	u.Level = level
	r.db.users[userID] = u
	return nil
}

func (r *memUsers) GetByIDs(ctx context.Context, ids []uint) ([]entity.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []entity.User
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// --- xp ---

type memXP struct{ db *memDB }

func (r *memXP) Create(ctx context.Context, tx *entity.XPTransaction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	tx.ID = r.db.id()
	r.db.xp = append(r.db.xp, *tx)
	return nil
}

func (r *memXP) ListByUser(ctx context.Context, userID uint, limit int) ([]entity.XPTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []entity.XPTransaction
	for i := len(r.db.xp) - 1; i >= 0 && len(out) < limit; i-- {
		if r.db.xp[i].UserID == userID {
			out = append(out, r.db.xp[i])
		}
	}
	return out, nil
}

// --- streaks ---

type memStreaks struct {
	db *memDB
	tx *txLocks
}

func (r *memStreaks) LockOrCreate(ctx context.Context, userID, gameID uint) (*entity.DailyStreak, error) {
	r.db.lockRow(r.tx, fmt.Sprintf("streak:%d:%d", userID, gameID), false)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := streakKey{userID, gameID}
	s, ok := r.db.streaks[key]
	if !ok {
		s = entity.DailyStreak{UserID: userID, GameID: gameID}
		r.db.streaks[key] = s
	}
	return &s, nil
}

func (r *memStreaks) Get(ctx context.Context, userID, gameID uint) (*entity.DailyStreak, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.streaks[streakKey{userID, gameID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &s, nil
}

func (r *memStreaks) Save(ctx context.Context, streak *entity.DailyStreak) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.streaks[streakKey{streak.UserID, streak.GameID}] = *streak
	return nil
}

// ============================================================================
// Мок рассылки и сборка сервисов
// ============================================================================

// MockBroadcaster реализует InstanceBroadcaster
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) BroadcastEventToInstance(instanceID uint, eventType string, data interface{}) error {
	args := m.Called(instanceID, eventType, data)
	return args.Error(0)
}

// testEnv — набор сервисов поверх memDB, miniredis и фиксированных часов
type testEnv struct {
	db          *memDB
	redis       *miniredis.Miniredis
	cache       repository.CacheRepository
	config      *quizmanager.Config
	clock       *quizmanager.PeriodClock
	now         time.Time
	broadcaster *MockBroadcaster

	users       *UserService
	xp          *XPService
	leaderboard *LeaderboardService
	scoring     *ScoringService
	attempts    *AttemptService
	instances   *InstanceService
	games       *GameService
}

// testNow — среда, 2024-02-14 12:30 UTC (неделя 2024-W07)
var testNow = time.Date(2024, time.February, 14, 12, 30, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache, err := redisrepo.NewCacheRepo(client)
	require.NoError(t, err)

	env := &testEnv{
		db:          newMemDB(),
		redis:       mr,
		cache:       cache,
		config:      quizmanager.DefaultConfig(),
		now:         testNow,
		broadcaster: new(MockBroadcaster),
	}
	env.broadcaster.On("BroadcastEventToInstance", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	env.clock = quizmanager.NewPeriodClock(time.UTC, func() time.Time { return env.now })
	env.rebuild()
	return env
}

// rebuild пересобирает сервисы после изменения config
func (e *testEnv) rebuild() {
	repos := e.db.repos()
	tx := memTx{e.db}
	e.users = NewUserService(repos.Users)
	e.xp = NewXPService(repos, tx)
	e.leaderboard = NewLeaderboardService(repos, tx, e.cache, e.clock, config.LeaderboardConfig{
		CacheTTLSec: 30, DefaultPageSize: 50, MaxPageSize: 100,
	})
	e.scoring = NewScoringService(repos, tx, e.config, e.clock, e.leaderboard, e.xp, e.broadcaster)
	e.attempts = NewAttemptService(repos, tx, e.config, e.clock, e.scoring)
	e.instances = NewInstanceService(repos, tx, e.cache, e.config, e.clock, nil, e.scoring, e.broadcaster)
	e.games = NewGameService(repos)
}

func (e *testEnv) user(t *testing.T, discordID string) *entity.User {
	t.Helper()
	u, err := e.users.EnsureIdentity(context.Background(), IdentityInput{DiscordID: discordID, Username: "user-" + discordID, Verified: true})
	require.NoError(t, err, "Пользователь должен создаться")
	return u
}

func (e *testEnv) game(t *testing.T, slug string, questions int) *entity.Game {
	t.Helper()
	ctx := context.Background()
	g, err := e.games.CreateGame(ctx, slug, "Game "+slug)
	require.NoError(t, err, "Игра должна создаться")

	inputs := make([]QuestionInput, questions)
	for i := range inputs {
		inputs[i] = QuestionInput{
			Text:         "Question " + string(rune('A'+i%26)),
			Options:      []string{"o0", "o1", "o2", "o3"},
			CorrectIndex: i % entity.OptionsPerQuestion,
		}
	}
	if questions > 0 {
		_, err = e.games.AddQuestions(ctx, slug, inputs)
		require.NoError(t, err, "Вопросы должны добавиться")
	}
	return g
}

// answer возвращает показанный индекс правильного (correct=true) или неправильного варианта
func (e *testEnv) answer(t *testing.T, assignmentID uint, correct bool) *int {
	t.Helper()
	a, err := e.db.repos().Assignments.GetByID(context.Background(), assignmentID)
	require.NoError(t, err)
	idx, err := quizmanager.DisplayedIndexOf(a.Permutation, a.Question.CorrectIndex)
	require.NoError(t, err)
	if !correct {
		idx = (idx + 1) % entity.OptionsPerQuestion
	}
	return &idx
}

func (e *testEnv) question(id uint) entity.Question {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.questions[id]
}
