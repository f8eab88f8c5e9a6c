package quizmanager

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ggza/trivia-core/internal/domain/entity"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
)

// AllTimeKey — ключ единственного периода all_time
const AllTimeKey = "all"

const (
	dayLayout   = "2006-01-02"
	hourLayout  = "2006-01-02T15"
	monthLayout = "2006-01"
)

var weekKeyPattern = regexp.MustCompile(`^\d{4}-W(0[1-9]|[1-4]\d|5[0-3])$`)

// PeriodClock вычисляет ключи периодов в одном каноническом часовом поясе,
// независимо от часового пояса клиента
type PeriodClock struct {
	loc *time.Location
	now func() time.Time
}

// NewPeriodClock создает часы. now == nil означает time.Now
func NewPeriodClock(loc *time.Location, now func() time.Time) *PeriodClock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &PeriodClock{loc: loc, now: now}
}

// Now возвращает текущее время в каноническом поясе с точностью до микросекунды (как в PostgreSQL)
func (c *PeriodClock) Now() time.Time {
	return c.now().In(c.loc).Truncate(time.Microsecond)
}

// DayKey — YYYY-MM-DD
func (c *PeriodClock) DayKey(t time.Time) string {
	return t.In(c.loc).Format(dayLayout)
}

// HourKey — YYYY-MM-DDTHH
func (c *PeriodClock) HourKey(t time.Time) string {
	return t.In(c.loc).Format(hourLayout)
}

// WeekKey — ISO-неделя YYYY-Www
func (c *PeriodClock) WeekKey(t time.Time) string {
	year, week := t.In(c.loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey — YYYY-MM
func (c *PeriodClock) MonthKey(t time.Time) string {
	return t.In(c.loc).Format(monthLayout)
}

// PeriodKey возвращает ключ периода указанного типа для момента t
func (c *PeriodClock) PeriodKey(periodType string, t time.Time) (string, error) {
	switch periodType {
	case entity.PeriodWeekly:
		return c.WeekKey(t), nil
	case entity.PeriodMonthly:
		return c.MonthKey(t), nil
	case entity.PeriodAllTime:
		return AllTimeKey, nil
	default:
		return "", fmt.Errorf("%w: unknown period type %q", apperrors.ErrValidation, periodType)
	}
}

// BucketKey возвращает ключ временного окна для эфемерных режимов.
// ok == false для режимов без окна (live, practice).
func (c *PeriodClock) BucketKey(mode string, t time.Time) (key string, ok bool) {
	switch mode {
	case entity.ModeDaily:
		return c.DayKey(t), true
	case entity.ModeFlash:
		return c.HourKey(t), true
	default:
		return "", false
	}
}

// PreviousDayKey возвращает ключ предыдущего календарного дня
func (c *PeriodClock) PreviousDayKey(dayKey string) (string, error) {
	day, err := time.ParseInLocation(dayLayout, dayKey, c.loc)
	if err != nil {
		return "", fmt.Errorf("%w: bad day key %q", apperrors.ErrValidation, dayKey)
	}
	return day.AddDate(0, 0, -1).Format(dayLayout), nil
}

// ValidatePeriodKey проверяет формат ключа для типа периода
func ValidatePeriodKey(periodType, key string) error {
	switch periodType {
	case entity.PeriodWeekly:
		if !weekKeyPattern.MatchString(key) {
			return fmt.Errorf("%w: weekly period key must look like 2024-W07, got %q", apperrors.ErrValidation, key)
		}
	case entity.PeriodMonthly:
		if _, err := time.Parse(monthLayout, key); err != nil {
			return fmt.Errorf("%w: monthly period key must look like 2024-02, got %q", apperrors.ErrValidation, key)
		}
	case entity.PeriodAllTime:
		if key != AllTimeKey {
			return fmt.Errorf("%w: all_time period key must be %q", apperrors.ErrValidation, AllTimeKey)
		}
	default:
		return fmt.Errorf("%w: unknown period type %q", apperrors.ErrValidation, periodType)
	}
	return nil
}

// PeriodBounds возвращает полуинтервал [from, to) периода в каноническом поясе.
// Для all_time from — нулевое время, to — далекое будущее.
func (c *PeriodClock) PeriodBounds(periodType, key string) (from, to time.Time, err error) {
	if err := ValidatePeriodKey(periodType, key); err != nil {
		return time.Time{}, time.Time{}, err
	}
	switch periodType {
	case entity.PeriodWeekly:
		var year, week int
		if _, err := fmt.Sscanf(key, "%04d-W%02d", &year, &week); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: bad week key %q", apperrors.ErrValidation, key)
		}
		// 4 января всегда в первой ISO-неделе
		jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, c.loc)
		offset := (int(jan4.Weekday()) + 6) % 7
		from = jan4.AddDate(0, 0, -offset+(week-1)*7)
		return from, from.AddDate(0, 0, 7), nil
	case entity.PeriodMonthly:
		from, _ = time.ParseInLocation(monthLayout, key, c.loc)
		return from, from.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC), nil
	}
}
