package autocompact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateGetOrCreate(t *testing.T) {
	s := NewState()
	require.False(t, s.Has("s1"))

	rs := s.GetOrCreate("s1")
	require.Equal(t, RetryState{}, rs)
	require.True(t, s.Has("s1"))
	require.Equal(t, 1, s.Len())

	now := time.Now()
	require.Equal(t, 1, s.RecordAttempt("s1", now))
	require.Equal(t, 2, s.RecordAttempt("s1", now.Add(time.Second)))

	rs = s.GetOrCreate("s1")
	require.Equal(t, 2, rs.Attempt)
	require.Equal(t, now.Add(time.Second), rs.LastAttemptTime)
}

func TestStateClearRemovesAllEntries(t *testing.T) {
	s := NewState()
	s.MarkPending("s1")
	s.SetError("s1", &ParsedTokenLimitError{CurrentTokens: 210000, MaxTokens: 200000})
	s.RecordAttempt("s1", time.Now())

	require.True(t, s.IsPending("s1"))
	parsed, ok := s.Error("s1")
	require.True(t, ok)
	require.Equal(t, 210000, parsed.CurrentTokens)

	s.Clear("s1")
	require.False(t, s.IsPending("s1"))
	require.False(t, s.Has("s1"))
	_, ok = s.Error("s1")
	require.False(t, ok)
	require.Equal(t, 0, s.Len())
}

func TestStateSessionsAreIsolated(t *testing.T) {
	s := NewState()
	s.MarkPending("a")
	s.RecordAttempt("a", time.Now())
	s.SetError("b", &ParsedTokenLimitError{MaxTokens: 1})

	require.False(t, s.IsPending("b"))
	require.False(t, s.Has("b"))
	_, ok := s.Error("a")
	require.False(t, ok)
	require.Equal(t, 2, s.Len())

	s.Clear("a")
	_, ok = s.Error("b")
	require.True(t, ok)
	require.Equal(t, 1, s.Len())
}

func TestStateSetErrorCopies(t *testing.T) {
	s := NewState()
	parsed := &ParsedTokenLimitError{ModelID: "gpt-4o"}
	s.SetError("s1", parsed)
	parsed.ModelID = "changed"

	got, _ := s.Error("s1")
	require.Equal(t, "gpt-4o", got.ModelID)

	s.SetError("s2", nil)
	_, ok := s.Error("s2")
	require.False(t, ok)
}

func TestStateReset(t *testing.T) {
	s := NewState()
	s.MarkPending("a")
	s.RecordAttempt("b", time.Now())
	s.Reset()
	require.Equal(t, 0, s.Len())
}
