// internal/llm/extract.go
package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

// ErrUnparseableScript 模型输出无法解析为脚本
var ErrUnparseableScript = errors.New("Failed to parse generated script")

var (
	fencedJSON = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*\\})\\s*```")
	bareJSON   = regexp.MustCompile(`(\{[\s\S]*\})`)
)

// ExtractJSON 优先取 ```json 代码块，否则取第一个 { 到最后一个 } 的片段
func ExtractJSON(content string) string {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	if m := bareJSON.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return strings.TrimSpace(content)
}

// ParseScript 从模型输出中解析视频脚本
func ParseScript(content string) (*models.VideoScript, error) {
	var script models.VideoScript
	if err := json.Unmarshal([]byte(ExtractJSON(content)), &script); err != nil {
		return nil, ErrUnparseableScript
	}
	if len(script.Scenes) == 0 {
		return nil, ErrUnparseableScript
	}

	// 缺失的场景编号按顺序补齐
	for i := range script.Scenes {
		if script.Scenes[i].SceneNumber <= 0 {
			script.Scenes[i].SceneNumber = i + 1
		}
	}
	script.Title = strings.TrimSpace(script.Title)
	return &script, nil
}

// ExtractImageURL 读取 choices[0].message.images[0].image_url.url
func ExtractImageURL(rawMessage string) (string, bool) {
	var msg struct {
		Images []struct {
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"images"`
	}
	if err := json.Unmarshal([]byte(rawMessage), &msg); err != nil {
		return "", false
	}
	if len(msg.Images) == 0 || msg.Images[0].ImageURL.URL == "" {
		return "", false
	}
	return msg.Images[0].ImageURL.URL, true
}
