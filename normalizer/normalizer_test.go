package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basstimam/jatevo-moodboard-agent/types"
)

var testClock = Timestamps{AnalyzedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}

func TestNormalizeFencedReply(t *testing.T) {
	raw := "Sure! ```json\n{\"coins\":[{\"symbol\":\"BTC\",\"mood\":\"📈\",\"narrative\":\"rally\",\"score\":0.8}]}\n```"

	out := Normalize(raw, testClock)

	require.True(t, out.Validated)
	require.NotNil(t, out.Report)
	assert.Empty(t, out.RawFallback)
	require.Len(t, out.Report.Coins, 1)
	assert.Equal(t, "BTC", out.Report.Coins[0].Symbol)
	assert.Equal(t, "📈", out.Report.Coins[0].Mood)
	assert.InDelta(t, 0.8, out.Report.Coins[0].Score, 1e-9)
}

func TestNormalizeRefusalFallsBack(t *testing.T) {
	raw := "I cannot help with that."

	out := Normalize(raw, testClock)

	assert.False(t, out.Validated)
	assert.Equal(t, raw, out.RawFallback)
	assert.Nil(t, out.Report)
}

func TestNormalizeNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"{",
		"}{",
		"{\"coins\":",
		"{\"coins\": [{\"symbol\": \"BT",
		"```json\n```",
		"no braces at all",
		"{\"coins\":[]}", // parses but violates min=1
		"\x00\xff garbage {{{",
	}

	for _, raw := range inputs {
		out := Normalize(raw, testClock)
		assert.False(t, out.Validated, "input %q", raw)
		assert.Equal(t, raw, out.RawFallback, "input %q", raw)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := "prefix {\"coins\":[{\"symbol\":\"ETH\",\"mood\":\"🦾\",\"narrative\":\"steady\",\"score\":0.5}]} suffix"

	first := Normalize(raw, testClock)
	second := Normalize(raw, testClock)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalizeRoundTrip(t *testing.T) {
	report := types.MoodReport{
		SchemaVersion: SchemaVersion,
		MarketMood:    "cautiously bullish",
		Coins: []types.CoinMood{
			{Symbol: "BTC", Mood: "📈", Narrative: "grinding higher", Score: 0.7},
			{Symbol: "SOL", Mood: "🎢", Narrative: "volatile chop", Score: 0.4},
		},
		AnalyzedAt: testClock.AnalyzedAt.UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	for _, wrapped := range []string{
		string(data),
		"```json\n" + string(data) + "\n```",
		"Here you go:\n" + string(data),
	} {
		out := Normalize(wrapped, testClock)
		require.True(t, out.Validated, "input %q", wrapped)
		assert.Equal(t, report, *out.Report)
	}
}

func TestNormalizeOverridesModelTimestamps(t *testing.T) {
	raw := `{"coins":[{"symbol":"BTC","mood":"📈","narrative":"up only","score":1}],"analyzed_at":"1999-01-01T00:00:00Z"}`

	out := Normalize(raw, testClock)

	require.True(t, out.Validated)
	assert.Equal(t, "2026-08-30T12:00:00Z", out.Report.AnalyzedAt)
}

func TestNormalizeSchemaViolationKeepsBothForms(t *testing.T) {
	// score out of range: parses fine, fails validation
	raw := `{"coins":[{"symbol":"BTC","mood":"📈","narrative":"moon","score":1.5}]}`

	out := Normalize(raw, testClock)

	assert.False(t, out.Validated)
	assert.Equal(t, raw, out.RawFallback)
	require.NotNil(t, out.Report)
	assert.InDelta(t, 1.5, out.Report.Coins[0].Score, 1e-9)
}

func TestExtractObjectSkipsBracesInStrings(t *testing.T) {
	raw := `{"coins":[{"symbol":"BTC","mood":"📈","narrative":"breakout from the {wedge} pattern","score":0.9}]}`

	out := Normalize(raw, testClock)

	require.True(t, out.Validated)
	assert.Equal(t, "breakout from the {wedge} pattern", out.Report.Coins[0].Narrative)
}
