// internal/validation/inputs.go
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

const (
	MinTopicLength             = 3
	MaxTopicLength             = 1000
	MaxVisualDescriptionLength = 2000
	MaxCommentLength           = 2000
	MaxBatchScenes             = 20
	MinExpiryDays              = 1
	MaxExpiryDays              = 365
	MinPasswordLength          = 8
)

var scriptTagPattern = regexp.MustCompile(`(?i)<[^>]*script`)

// ScriptRequest 脚本生成请求
type ScriptRequest struct {
	Topic      string `json:"topic"`
	TemplateID string `json:"template_id,omitempty"`
}

// StoryboardRequest 单场景分镜生成请求
type StoryboardRequest struct {
	Scene models.Scene `json:"scene"`
}

// StoryboardBatchRequest 批量分镜生成请求
type StoryboardBatchRequest struct {
	Scenes []models.Scene `json:"scenes"`
}

// ShareRequest 分享链接请求，ExpiresInDays 为 nil 表示永不过期
type ShareRequest struct {
	ProjectID     string `json:"project_id"`
	ExpiresInDays *int   `json:"expires_in_days"`
}

// Credentials 注册/登录凭据
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

// ProjectInput 保存/更新项目的请求体
type ProjectInput struct {
	Title            string                   `json:"title" validate:"required,max=200"`
	Topic            string                   `json:"topic" validate:"required,max=1000"`
	Script           models.VideoScript       `json:"script"`
	StoryboardImages []models.StoryboardImage `json:"storyboard_images" validate:"omitempty,dive"`
	TemplateID       string                   `json:"template_id,omitempty"`
}

// AnalyticsEventInput 客户端上报的分析事件
type AnalyticsEventInput struct {
	EventType models.EventType       `json:"event_type"`
	ProjectID string                 `json:"project_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// CommentInput 评论请求
type CommentInput struct {
	Content     string `json:"content"`
	SceneNumber *int   `json:"scene_number,omitempty"`
}

// InviteInput 邀请协作者请求
type InviteInput struct {
	Email string      `json:"email" validate:"required,email"`
	Role  models.Role `json:"role" validate:"required,oneof=admin editor viewer"`
}

// GenerateScriptInput 校验脚本生成输入，返回去除首尾空白后的主题
func GenerateScriptInput(body []byte) (ScriptRequest, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return ScriptRequest{}, err
	}

	topic, ok := obj["topic"].(string)
	if !ok || topic == "" {
		return ScriptRequest{}, invalid("Topic is required and must be a string")
	}

	trimmed := strings.TrimSpace(topic)
	n := utf8.RuneCountInString(trimmed)
	if n < MinTopicLength {
		return ScriptRequest{}, invalid("Topic must be at least 3 characters")
	}
	if n > MaxTopicLength {
		return ScriptRequest{}, invalid("Topic must be less than 1000 characters")
	}
	if scriptTagPattern.MatchString(trimmed) {
		return ScriptRequest{}, invalid("Invalid characters in topic")
	}

	req := ScriptRequest{Topic: trimmed}
	if raw, present := obj["template_id"]; present && raw != nil {
		id, ok := raw.(string)
		if !ok || strings.TrimSpace(id) == "" {
			return ScriptRequest{}, invalid("Template ID must be a string")
		}
		req.TemplateID = strings.TrimSpace(id)
	}
	return req, nil
}

// StoryboardInput 校验单场景分镜输入
func StoryboardInput(body []byte) (StoryboardRequest, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return StoryboardRequest{}, err
	}
	scene, err := sceneFrom(obj["scene"])
	if err != nil {
		return StoryboardRequest{}, err
	}
	return StoryboardRequest{Scene: scene}, nil
}

// StoryboardBatchInput 校验批量分镜输入
func StoryboardBatchInput(body []byte) (StoryboardBatchRequest, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return StoryboardBatchRequest{}, err
	}
	list, ok := obj["scenes"].([]interface{})
	if !ok || len(list) == 0 {
		return StoryboardBatchRequest{}, invalid("Scenes array is required")
	}
	if len(list) > MaxBatchScenes {
		return StoryboardBatchRequest{}, invalid(fmt.Sprintf("At most %d scenes per batch", MaxBatchScenes))
	}

	scenes := make([]models.Scene, 0, len(list))
	for i, raw := range list {
		scene, err := sceneFrom(raw)
		if err != nil {
			return StoryboardBatchRequest{}, invalid(fmt.Sprintf("scenes[%d]: %s", i, err.Error()))
		}
		scenes = append(scenes, scene)
	}
	return StoryboardBatchRequest{Scenes: scenes}, nil
}

func sceneFrom(raw interface{}) (models.Scene, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return models.Scene{}, invalid("Scene object is required")
	}

	number, ok := integer(obj["sceneNumber"])
	if !ok || number < 1 {
		return models.Scene{}, invalid("Valid scene number is required")
	}

	visual, ok := obj["visualDescription"].(string)
	if !ok || strings.TrimSpace(visual) == "" {
		return models.Scene{}, invalid("Visual description is required")
	}
	if utf8.RuneCountInString(visual) > MaxVisualDescriptionLength {
		return models.Scene{}, invalid("Visual description too long")
	}

	return models.Scene{
		SceneNumber:       number,
		Duration:          stringify(obj["duration"]),
		VoiceOver:         stringify(obj["voiceOver"]),
		VisualDescription: visual,
		Notes:             stringify(obj["notes"]),
	}, nil
}

// ShareLinkInput 校验分享链接输入
func ShareLinkInput(body []byte) (ShareRequest, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return ShareRequest{}, err
	}

	projectID, ok := obj["project_id"].(string)
	if !ok || projectID == "" {
		return ShareRequest{}, invalid("Project ID is required")
	}
	if !IsUUID(projectID) {
		return ShareRequest{}, invalid("Invalid project ID format")
	}

	req := ShareRequest{ProjectID: projectID}
	if raw := obj["expires_in_days"]; raw != nil {
		days, ok := integer(raw)
		if !ok {
			return ShareRequest{}, invalid("Expiry days must be an integer")
		}
		if days < MinExpiryDays || days > MaxExpiryDays {
			return ShareRequest{}, invalid("Expiry days must be between 1 and 365")
		}
		req.ExpiresInDays = &days
	}
	return req, nil
}

// ValidateCredentials 校验邮箱和密码强度
func ValidateCredentials(body []byte) (Credentials, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return Credentials{}, err
	}
	creds := Credentials{
		Email:    strings.ToLower(strings.TrimSpace(stringify(obj["email"]))),
		Password: stringify(obj["password"]),
	}
	if Validator().Var(creds.Email, "required,email") != nil {
		return Credentials{}, invalid("Invalid email address")
	}
	if err := PasswordPolicy(creds.Password); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// PasswordPolicy 至少 8 位，包含大写、小写字母和数字
func PasswordPolicy(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return invalid("Password must be at least 8 characters")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return invalid("Password must contain at least one uppercase letter")
	}
	if !lower {
		return invalid("Password must contain at least one lowercase letter")
	}
	if !digit {
		return invalid("Password must contain at least one number")
	}
	return nil
}

// Project 校验项目保存请求
func Project(in *ProjectInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Topic = strings.TrimSpace(in.Topic)
	if in.Title == "" {
		in.Title = strings.TrimSpace(in.Script.Title)
	}
	return Struct(in)
}

// VideoScript 校验 AI 返回或客户端提交的脚本
func VideoScript(script *models.VideoScript) error {
	return Struct(script)
}

var (
	resolutions  = map[string]bool{"720p": true, "1080p": true, "4k": true}
	aspectRatios = map[string]bool{"16:9": true, "9:16": true, "1:1": true}
	frameRates   = map[int]bool{24: true, 30: true, 60: true}
)

// ExportOptions 校验视频渲染参数，fps 可以是数字或数字字符串
func ExportOptions(body []byte, projectID string) (models.ExportOptions, error) {
	if !IsUUID(projectID) {
		return models.ExportOptions{}, invalid("Invalid project ID format")
	}
	obj, err := decodeObject(body)
	if err != nil {
		return models.ExportOptions{}, err
	}

	resolution, _ := obj["resolution"].(string)
	if !resolutions[resolution] {
		return models.ExportOptions{}, invalid("resolution must be one of 720p, 1080p, 4k")
	}
	aspect, _ := obj["aspectRatio"].(string)
	if !aspectRatios[aspect] {
		return models.ExportOptions{}, invalid("aspectRatio must be one of 16:9, 9:16, 1:1")
	}

	fps, ok := integer(obj["fps"])
	if !ok {
		if s, isString := obj["fps"].(string); isString {
			fps, err = strconv.Atoi(s)
			ok = err == nil
		}
	}
	if !ok || !frameRates[fps] {
		return models.ExportOptions{}, invalid("fps must be one of 24, 30, 60")
	}

	return models.ExportOptions{
		ProjectID:   projectID,
		Resolution:  resolution,
		FPS:         fps,
		AspectRatio: aspect,
	}, nil
}

// AnalyticsEvent 校验分析事件
func AnalyticsEvent(body []byte) (AnalyticsEventInput, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return AnalyticsEventInput{}, err
	}

	eventType, _ := obj["event_type"].(string)
	valid := false
	for _, t := range models.EventTypes {
		if string(t) == eventType {
			valid = true
			break
		}
	}
	if !valid {
		return AnalyticsEventInput{}, invalid("Unknown event type")
	}

	in := AnalyticsEventInput{EventType: models.EventType(eventType)}
	if raw := obj["project_id"]; raw != nil {
		id, ok := raw.(string)
		if !ok || !IsUUID(id) {
			return AnalyticsEventInput{}, invalid("Invalid project ID format")
		}
		in.ProjectID = id
	}
	if raw := obj["metadata"]; raw != nil {
		meta, ok := raw.(map[string]interface{})
		if !ok {
			return AnalyticsEventInput{}, invalid("Metadata must be an object")
		}
		in.Metadata = meta
	}
	return in, nil
}

// Comment 校验评论
func Comment(body []byte) (CommentInput, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return CommentInput{}, err
	}

	content, ok := obj["content"].(string)
	content = strings.TrimSpace(content)
	if !ok || content == "" {
		return CommentInput{}, invalid("Comment content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return CommentInput{}, invalid("Comment is too long")
	}

	in := CommentInput{Content: content}
	if raw := obj["scene_number"]; raw != nil {
		n, ok := integer(raw)
		if !ok || n < 1 {
			return CommentInput{}, invalid("Valid scene number is required")
		}
		in.SceneNumber = &n
	}
	return in, nil
}

// Invite 校验邀请，角色缺省为 viewer
func Invite(body []byte) (InviteInput, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return InviteInput{}, err
	}
	in := InviteInput{
		Email: strings.ToLower(strings.TrimSpace(stringify(obj["email"]))),
		Role:  models.Role(stringify(obj["role"])),
	}
	if in.Role == "" {
		in.Role = models.RoleViewer
	}
	if err := Struct(&in); err != nil {
		return InviteInput{}, err
	}
	return in, nil
}
