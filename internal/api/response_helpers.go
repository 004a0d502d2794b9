// internal/api/response_helpers.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

const genericErrorMessage = "An internal error occurred"

// ErrorResponse 错误响应格式
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct {
	logger  *utils.Logger
	metrics *utils.APIMetrics
}

// NewResponseHelper 创建响应助手
func NewResponseHelper(metrics *utils.APIMetrics) *ResponseHelper {
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	return &ResponseHelper{
		logger:  utils.GetLogger().With(map[string]interface{}{"component": "api"}),
		metrics: metrics,
	}
}

// Success 200 响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 201 响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// sanitizeErrorMessage 涉及密钥的消息整体替换
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, pattern := range []string{"api_key=", "apikey=", "secret=", "token=", "password=", "bearer ", "sk-"} {
		if strings.Contains(lower, pattern) {
			return genericErrorMessage
		}
	}
	return message
}

// Error 把错误映射为状态码和 {error} 响应
// 500 只返回通用消息，细节写日志
func (rh *ResponseHelper) Error(c *gin.Context, err error) {
	errType := apperrors.TypeOf(err)
	status, code := statusFor(errType)

	message := genericErrorMessage
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if status < http.StatusInternalServerError || errType == apperrors.ErrorTypeUpstream || errType == apperrors.ErrorTypeConfig {
			message = appErr.Message
		}
	}
	if status >= http.StatusInternalServerError {
		// 上游与配置错误可能带出密钥片段
		message = sanitizeErrorMessage(message)
	}

	switch {
	case status == http.StatusBadGateway:
		rh.logger.Warn("AI 网关请求失败", map[string]interface{}{"path": c.FullPath(), "err": err.Error()})
		rh.metrics.RecordError(string(errType), "api")
	case status >= http.StatusInternalServerError:
		rh.logger.Error("请求处理失败", map[string]interface{}{
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"status": status,
			"err":    err.Error(),
		})
		rh.metrics.RecordError(string(errType), "api")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string) {
	rh.Error(c, apperrors.NewValidationError(message, nil))
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, message string) {
	rh.Error(c, apperrors.NewNotFoundError(message, nil))
}

// DownloadResponse 以附件形式返回二进制内容
func (rh *ResponseHelper) DownloadResponse(c *gin.Context, data []byte, filename, contentType string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, data)
}

// InlineResponse 直接展示的二进制内容（图片等）
func (rh *ResponseHelper) InlineResponse(c *gin.Context, data []byte, contentType string) {
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, contentType, data)
}
