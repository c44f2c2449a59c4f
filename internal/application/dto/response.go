package dto

import (
	"github.com/turtacn/tenantjwt/pkg/errors"
)

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// ErrorResponse 创建错误响应。只暴露错误类别与公开描述。
func ErrorResponse(err error) errors.ErrorResponse {
	return errors.ToErrorResponse(err)
}
