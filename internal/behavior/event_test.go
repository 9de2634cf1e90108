package behavior

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStampsUTCAndSource(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	ev := New(TypeVisit, CategoryTechnology, at)

	assert.Equal(t, SourceExtension, ev.Source)
	assert.Equal(t, time.UTC, ev.Timestamp.Location())
	assert.True(t, ev.Timestamp.Equal(at))
	assert.NotNil(t, ev.Keywords)
}

func TestWithKeywordsDoesNotShareSlice(t *testing.T) {
	kw := []string{"github.com", "explore"}
	ev := New(TypeVisit, CategoryTechnology, time.Now()).WithKeywords(kw)
	kw[0] = "mutated"

	assert.Equal(t, "github.com", ev.Keywords[0])
}

func TestCloneIsDeep(t *testing.T) {
	ev := New(TypeEngagement, CategoryNews, time.Now()).
		WithKeywords([]string{"a"}).
		WithAnalysis(SentimentPositive, TiltNeutral, 0.5).
		WithDuration(12)

	clone := ev.Clone()
	clone.Keywords[0] = "b"
	*clone.Confidence = 0.9
	*clone.SessionDuration = 99

	assert.Equal(t, "a", ev.Keywords[0])
	assert.Equal(t, 0.5, *ev.Confidence)
	assert.Equal(t, 12, *ev.SessionDuration)
}

func TestJSONOmitsAbsentAnalysis(t *testing.T) {
	ev := New(TypeVisit, CategoryGeneral, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Equal(t, "extension", fields["source"])
	assert.Equal(t, "visit", fields["behavior_type"])
	assert.Equal(t, "2026-01-02T03:04:05Z", fields["timestamp"])
	assert.NotContains(t, fields, "sentiment")
	assert.NotContains(t, fields, "confidence")
	assert.NotContains(t, fields, "session_duration")
	assert.NotContains(t, fields, "content")
}

func TestJSONKeepsZeroConfidenceWhenAnalysisRan(t *testing.T) {
	ev := New(TypeSearch, CategorySearch, time.Now()).WithAnalysis(SentimentNeutral, TiltNeutral, 0)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"confidence":0`)
}

func TestWithContentTruncatesRunes(t *testing.T) {
	long := strings.Repeat("é", ShortContentLimit+20)
	ev := New(TypeTweetView, CategorySocial, time.Now()).WithContent(long, ShortContentLimit)
	assert.Equal(t, ShortContentLimit, len([]rune(ev.Content)))
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryFinance.Valid())
	assert.False(t, Category("sports").Valid())
	assert.Len(t, Categories(), 10)
}
