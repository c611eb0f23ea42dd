package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRating(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Rating
	}{
		{"again", Again},
		{"Hard", Hard},
		{" good ", Good},
		{"4", Easy},
		{"1", Again},
	} {
		got, err := ParseRating(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "0", "5", "perfect", "-1"} {
		_, err := ParseRating(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestRatingJSON(t *testing.T) {
	var req struct {
		Rating Rating `json:"rating"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"rating":"easy"}`), &req))
	assert.Equal(t, Easy, req.Rating)

	out, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rating":"easy"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"rating":"great"}`), &req))
	require.NoError(t, json.Unmarshal([]byte(`{"rating":2}`), &req))
	assert.Equal(t, Hard, req.Rating)
	assert.Error(t, json.Unmarshal([]byte(`{"rating":7}`), &req))

	_, err = json.Marshal(struct{ R Rating }{R: 9})
	assert.Error(t, err)
}

func TestRatingString(t *testing.T) {
	assert.Equal(t, "again", Again.String())
	assert.Equal(t, "Rating(7)", Rating(7).String())
}

func TestMemoryStateTiming(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	s := MemoryState{DueAt: now, LastReviewedAt: now.Add(-36 * time.Hour)}

	assert.True(t, s.IsDue(now))
	assert.False(t, s.IsDue(now.Add(-time.Second)))
	assert.InDelta(t, 1.5, s.ElapsedDays(now), 1e-9)

	// Clock skew never yields negative elapsed time.
	assert.Zero(t, s.ElapsedDays(now.Add(-72*time.Hour)))
}
