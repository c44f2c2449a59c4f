package service

import (
	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/pkg/errors"
)

// ApplyVerificationPolicy translates a decode result into claims or a taxonomy error.
// It is the only place verification outcomes become errors. Unauthorized errors keep
// the sub-case in metadata and the decode failure as their cause for logging.
// ApplyVerificationPolicy 将解码结果转换为声明或错误分类，是唯一的转换边界。
func ApplyVerificationPolicy(res models.DecodeResult) (models.Claims, error) {
	switch res.Outcome {
	case models.OutcomeCorrect:
		if res.Claims == nil {
			return nil, errors.ErrUnauthorized(errors.ReasonUnknownError)
		}
		return res.Claims, nil
	case models.OutcomeExpired:
		return nil, errors.ErrTokenExpired().WithCause(res.Err)
	case models.OutcomeInvalidSecret:
		return nil, errors.ErrUnauthorized(errors.ReasonInvalidSecret).WithCause(res.Err)
	case models.OutcomeInvalidFormat:
		return nil, errors.ErrUnauthorized(errors.ReasonInvalidFormat).WithCause(res.Err)
	default:
		return nil, errors.ErrUnauthorized(errors.ReasonUnknownError).WithCause(res.Err)
	}
}
