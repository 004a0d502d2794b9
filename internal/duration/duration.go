// internal/duration/duration.go
package duration

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

// Format 时长输出格式
type Format int

const (
	// FormatLong "1 min 30 sec"
	FormatLong Format = iota
	// FormatShort "1:30"
	FormatShort
)

var (
	colonPattern   = regexp.MustCompile(`^(\d+):(\d+)$`)
	secondsPattern = regexp.MustCompile(`(\d+)\s*(?:seconds|second|sec|s)`)
	minutesPattern = regexp.MustCompile(`(\d+)\s*(?:minutes|minute|min|m)`)
	numberPattern  = regexp.MustCompile(`\d+`)
)

// ScenePercentage 单个场景占总时长的百分比
type ScenePercentage struct {
	SceneNumber int `json:"sceneNumber"`
	Percentage  int `json:"percentage"`
}

// Parse 将自由格式的时长字符串解析为秒数
// 无法解析或空字符串返回 0，不会报错
func Parse(input string) int {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return 0
	}

	// MM:SS
	if m := colonPattern.FindStringSubmatch(s); m != nil {
		return atoi(m[1])*60 + atoi(m[2])
	}

	minutes := minutesPattern.FindStringSubmatch(s)
	seconds := secondsPattern.FindStringSubmatch(s)

	if seconds != nil && minutes == nil {
		return atoi(seconds[1])
	}

	// "1 min 30 sec" 这种组合写法
	if minutes != nil {
		total := atoi(minutes[1]) * 60
		if seconds != nil {
			total += atoi(seconds[1])
		}
		return total
	}

	if n := numberPattern.FindString(s); n != "" {
		return atoi(n)
	}
	return 0
}

// FormatSeconds 将秒数格式化为可读字符串
// 0 在两种格式下都输出 "0 sec"
func FormatSeconds(total int, f Format) string {
	if total <= 0 {
		return "0 sec"
	}
	minutes := total / 60
	seconds := total % 60

	if f == FormatShort {
		switch {
		case minutes == 0:
			return fmt.Sprintf("%ds", seconds)
		case seconds == 0:
			return fmt.Sprintf("%dm", minutes)
		default:
			return fmt.Sprintf("%d:%02d", minutes, seconds)
		}
	}

	parts := make([]string, 0, 2)
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d min", minutes))
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%d sec", seconds))
	}
	return strings.Join(parts, " ")
}

// TotalSeconds 所有场景时长之和
func TotalSeconds(scenes []models.Scene) int {
	total := 0
	for _, scene := range scenes {
		total += Parse(scene.Duration)
	}
	return total
}

// CalculateTotal 总时长，长格式
func CalculateTotal(scenes []models.Scene) string {
	return FormatSeconds(TotalSeconds(scenes), FormatLong)
}

// ScenePercentages 计算每个场景占比
// 每个场景独立四舍五入，总和不保证等于 100
func ScenePercentages(scenes []models.Scene) []ScenePercentage {
	total := TotalSeconds(scenes)
	if len(scenes) == 0 || total == 0 {
		return []ScenePercentage{}
	}

	result := make([]ScenePercentage, 0, len(scenes))
	for _, scene := range scenes {
		share := float64(Parse(scene.Duration)) / float64(total) * 100
		result = append(result, ScenePercentage{
			SceneNumber: scene.SceneNumber,
			Percentage:  int(math.Round(share)),
		})
	}
	return result
}

// SceneDurations 每个场景的时长，供时间轴使用
func SceneDurations(scenes []models.Scene) []time.Duration {
	out := make([]time.Duration, len(scenes))
	for i, scene := range scenes {
		out[i] = time.Duration(Parse(scene.Duration)) * time.Second
	}
	return out
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
