// internal/models/scene.go
package models

// Scene 脚本中的一个镜头/场景
// 数组顺序是权威顺序，SceneNumber 仅用于展示
type Scene struct {
	SceneNumber       int    `json:"sceneNumber" yaml:"sceneNumber" validate:"gt=0"`
	Duration          string `json:"duration" yaml:"duration" validate:"required"`
	VoiceOver         string `json:"voiceOver" yaml:"voiceOver" validate:"required"`
	VisualDescription string `json:"visualDescription" yaml:"visualDescription" validate:"required,max=2000"`
	Notes             string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// StoryboardImage 场景分镜图，每个 SceneNumber 至多一张
type StoryboardImage struct {
	SceneNumber int    `json:"sceneNumber" validate:"gt=0"`
	ImageURL    string `json:"imageUrl" validate:"required,image_ref"`
}

// ImageFor 按场景编号查找分镜图
func ImageFor(images []StoryboardImage, sceneNumber int) (string, bool) {
	for _, img := range images {
		if img.SceneNumber == sceneNumber && img.ImageURL != "" {
			return img.ImageURL, true
		}
	}
	return "", false
}

// MergeImages 将新生成的分镜图合并进已有列表，同一场景以新图为准
func MergeImages(existing []StoryboardImage, incoming ...StoryboardImage) []StoryboardImage {
	merged := make([]StoryboardImage, 0, len(existing)+len(incoming))
	replaced := make(map[int]bool, len(incoming))
	for _, img := range incoming {
		replaced[img.SceneNumber] = true
	}
	for _, img := range existing {
		if !replaced[img.SceneNumber] {
			merged = append(merged, img)
		}
	}
	return append(merged, incoming...)
}
