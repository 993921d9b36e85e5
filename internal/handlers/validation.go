package handlers

import (
	"errors"
	"strings"

	apperrors "gmdl/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// bindError 请求绑定失败统一转为 422，附带字段级错误
func bindError(err error) *apperrors.AppError {
	appErr := apperrors.Validation("The given data was invalid.")

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[toSnake(fe.Field())] = fe.Tag()
		}
		return appErr.With("errors", fields)
	}
	return appErr.With("errors", map[string]string{"body": "invalid"})
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
