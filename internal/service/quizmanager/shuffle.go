package quizmanager

import (
	"fmt"
	"math/rand/v2"

	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
)

// RandomSource — источник случайных чисел для перемешивания и выборки вопросов.
// *rand.Rand из math/rand/v2 удовлетворяет интерфейсу.
type RandomSource interface {
	IntN(n int) int
}

type globalSource struct{}

// IntN использует глобальный ChaCha8-генератор math/rand/v2, засеянный из ОС
func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// DefaultRandom — источник по умолчанию
var DefaultRandom RandomSource = globalSource{}

// GeneratePermutation возвращает равномерно случайную перестановку {0..n-1} (Фишер–Йетс)
func GeneratePermutation(rng RandomSource, n int) []int {
	if rng == nil {
		rng = DefaultRandom
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// ValidatePermutation проверяет, что perm — биекция на {0..n-1}
func ValidatePermutation(perm []int, n int) error {
	if len(perm) != n {
		return fmt.Errorf("%w: permutation has %d entries, expected %d", apperrors.ErrIntegrity, len(perm), n)
	}
	seen := make([]bool, n)
	for _, v := range perm {
		if v < 0 || v >= n || seen[v] {
			return fmt.Errorf("%w: permutation %v is not a bijection on 0..%d", apperrors.ErrIntegrity, perm, n-1)
		}
		seen[v] = true
	}
	return nil
}

// ApplyPermutation возвращает варианты в показанном порядке: display[i] = canonical[perm[i]]
func ApplyPermutation(canonical []string, perm []int) ([]string, error) {
	if err := ValidatePermutation(perm, len(canonical)); err != nil {
		return nil, err
	}
	display := make([]string, len(perm))
	for i, src := range perm {
		display[i] = canonical[src]
	}
	return display, nil
}

// ResolveSelection проверяет выбор пользователя в показанном порядке.
// nil (нет ответа) всегда неверно. Повреждённая перестановка — ошибка целостности,
// а не тождественная перестановка по умолчанию.
func ResolveSelection(displayed *int, perm []int, canonicalCorrect int) (bool, error) {
	if len(perm) == 0 {
		return false, fmt.Errorf("%w: permutation is missing", apperrors.ErrIntegrity)
	}
	if err := ValidatePermutation(perm, len(perm)); err != nil {
		return false, err
	}
	if displayed == nil {
		return false, nil
	}
	if *displayed < 0 || *displayed >= len(perm) {
		return false, fmt.Errorf("%w: selected index %d out of range 0..%d", apperrors.ErrValidation, *displayed, len(perm)-1)
	}
	return perm[*displayed] == canonicalCorrect, nil
}

// DisplayedIndexOf возвращает позицию канонического варианта в показанном порядке
func DisplayedIndexOf(perm []int, canonical int) (int, error) {
	if err := ValidatePermutation(perm, len(perm)); err != nil {
		return -1, err
	}
	for i, v := range perm {
		if v == canonical {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: canonical index %d not present in permutation", apperrors.ErrIntegrity, canonical)
}
