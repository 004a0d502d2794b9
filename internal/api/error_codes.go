// internal/api/error_codes.go
package api

import (
	"net/http"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
)

// API错误代码常量
const (
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorForbidden     = "FORBIDDEN"
	ErrorUnauthorized  = "UNAUTHORIZED"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// AI 网关
	ErrorUpstreamFailed = "AI_GATEWAY_ERROR"
	ErrorAIConfig       = "AI_CONFIG_INVALID"
)

// errorMapping 错误类型到状态码与错误代码
var errorMapping = map[apperrors.ErrorType]struct {
	status int
	code   string
}{
	apperrors.ErrorTypeValidation:   {http.StatusBadRequest, ErrorBadRequest},
	apperrors.ErrorTypeUnauthorized: {http.StatusUnauthorized, ErrorUnauthorized},
	apperrors.ErrorTypeForbidden:    {http.StatusForbidden, ErrorForbidden},
	apperrors.ErrorTypeNotFound:     {http.StatusNotFound, ErrorNotFound},
	apperrors.ErrorTypeConflict:     {http.StatusConflict, ErrorConflict},
	apperrors.ErrorTypeRateLimited:  {http.StatusTooManyRequests, ErrorRateLimited},
	apperrors.ErrorTypeUpstream:     {http.StatusBadGateway, ErrorUpstreamFailed},
	apperrors.ErrorTypeConfig:       {http.StatusInternalServerError, ErrorAIConfig},
	apperrors.ErrorTypeInternal:     {http.StatusInternalServerError, ErrorInternalError},
}

// statusFor 返回错误对应的状态码和代码，未知错误按 500 处理
func statusFor(errType apperrors.ErrorType) (int, string) {
	if m, ok := errorMapping[errType]; ok {
		return m.status, m.code
	}
	return http.StatusInternalServerError, ErrorInternalError
}
