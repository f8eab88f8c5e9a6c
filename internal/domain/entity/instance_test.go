package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuizInstance_IsTerminal(t *testing.T) {
	cases := map[string]bool{
		InstanceStatusScheduled: false,
		InstanceStatusLive:      false,
		InstanceStatusCompleted: true,
		InstanceStatusCancelled: true,
	}
	for status, expected := range cases {
		instance := &QuizInstance{Status: status}
		assert.Equal(t, expected, instance.IsTerminal(), "статус %s", status)
	}
}

func TestQuizInstance_PlayableBy(t *testing.T) {
	owner := uint(7)
	practice := &QuizInstance{Mode: ModePractice, OwnerID: &owner}
	daily := &QuizInstance{Mode: ModeDaily}

	assert.True(t, practice.PlayableBy(7))
	assert.False(t, practice.PlayableBy(8), "чужая тренировка недоступна")
	assert.True(t, daily.PlayableBy(8))
}

func TestQuizInstance_CountsForLeaderboard(t *testing.T) {
	assert.True(t, (&QuizInstance{Mode: ModeLive}).CountsForLeaderboard())
	assert.True(t, (&QuizInstance{Mode: ModeFlash}).CountsForLeaderboard())
	assert.False(t, (&QuizInstance{Mode: ModePractice}).CountsForLeaderboard())
}

func TestIsKnownMode(t *testing.T) {
	assert.True(t, IsKnownMode(ModeFlash))
	assert.False(t, IsKnownMode("tournament"))
}

func TestIntList_ScanAcceptsStringAndBytes(t *testing.T) {
	var fromBytes IntList
	require.NoError(t, fromBytes.Scan([]byte("[2,0,3,1]")))
	assert.Equal(t, IntList{2, 0, 3, 1}, fromBytes)

	var fromString IntList
	require.NoError(t, fromString.Scan("[1,0]"))
	assert.Equal(t, IntList{1, 0}, fromString)

	var fromNil IntList
	require.NoError(t, fromNil.Scan(nil))
	assert.Nil(t, fromNil, "NULL должен давать nil, чтобы отсутствие перестановки было заметно")
}

func TestIntList_Value(t *testing.T) {
	raw, err := IntList{50, 30}.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[50,30]"), raw)
}
