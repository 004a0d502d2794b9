package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"colon", "1:30", 90},
		{"colon 2:45", "2:45", 165},
		{"colon zero minutes", "0:30", 30},
		{"seconds suffix", "30s", 30},
		{"seconds word", "45 seconds", 45},
		{"sec", "10 sec", 10},
		{"singular second", "15 second", 15},
		{"minutes suffix", "2m", 120},
		{"min", "2 min", 120},
		{"minutes word", "3 minutes", 180},
		{"combined short", "1 min 30 sec", 90},
		{"combined long", "2 minutes 15 seconds", 135},
		{"combined compact", "2m 30s", 150},
		{"plain number", "30", 30},
		{"number inside text", "about 12 or so", 12},
		{"empty", "", 0},
		{"whitespace only", "   ", 0},
		{"padded", "  30 seconds  ", 30},
		{"uppercase", "30 SECONDS", 30},
		{"garbage", "a while", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		total  int
		format Format
		want   string
	}{
		{0, FormatLong, "0 sec"},
		{0, FormatShort, "0 sec"},
		{-5, FormatLong, "0 sec"},
		{30, FormatLong, "30 sec"},
		{60, FormatLong, "1 min"},
		{90, FormatLong, "1 min 30 sec"},
		{120, FormatLong, "2 min"},
		{30, FormatShort, "30s"},
		{60, FormatShort, "1m"},
		{90, FormatShort, "1:30"},
		{65, FormatShort, "1:05"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSeconds(tt.total, tt.format), "total=%d format=%d", tt.total, tt.format)
	}
}

func TestFormatRoundTrips(t *testing.T) {
	// 短格式 "1:05" 与 "1m" 可以被重新解析
	assert.Equal(t, 65, Parse(FormatSeconds(65, FormatShort)))
	assert.Equal(t, 60, Parse(FormatSeconds(60, FormatShort)))
	assert.Equal(t, 45, Parse(FormatSeconds(45, FormatShort)))

	for _, s := range []int{1, 59, 60, 61, 135, 600} {
		assert.Equal(t, s, Parse(FormatSeconds(s, FormatLong)), "long round trip %d", s)
	}
}

func scenes(durations ...string) []models.Scene {
	out := make([]models.Scene, len(durations))
	for i, d := range durations {
		out[i] = models.Scene{SceneNumber: i + 1, Duration: d}
	}
	return out
}

func TestTotals(t *testing.T) {
	s := scenes("30 seconds", "1:00", "45s")
	assert.Equal(t, 135, TotalSeconds(s))
	assert.Equal(t, "2 min 15 sec", CalculateTotal(s))
	assert.Equal(t, "0 sec", CalculateTotal(nil))
}

func TestScenePercentages(t *testing.T) {
	t.Run("equal scenes", func(t *testing.T) {
		got := ScenePercentages(scenes("30 seconds", "30 seconds"))
		assert.Equal(t, []ScenePercentage{{1, 50}, {2, 50}}, got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, ScenePercentages(nil))
		assert.NotNil(t, ScenePercentages(nil))
	})

	t.Run("zero total", func(t *testing.T) {
		assert.Empty(t, ScenePercentages(scenes("")))
	})

	t.Run("rounding is not renormalised", func(t *testing.T) {
		got := ScenePercentages(scenes("10s", "10s", "10s"))
		sum := 0
		for _, p := range got {
			assert.Equal(t, 33, p.Percentage)
			sum += p.Percentage
		}
		assert.Equal(t, 99, sum)
	})
}

func TestSceneDurations(t *testing.T) {
	got := SceneDurations(scenes("10s", "", "1:00"))
	assert.Equal(t, []time.Duration{10 * time.Second, 0, time.Minute}, got)
}
