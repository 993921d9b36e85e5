package tenancy

import (
	"net/http"

	apperrors "gmdl/pkg/errors"
)

// AssertSafeDBName 库名会被拼进 DDL，必须先校验
func AssertSafeDBName(name string) error {
	if !IsSafeDBName(name) {
		return apperrors.New(http.StatusInternalServerError, apperrors.CodeDBNameNotSafe, "Unsafe tenant database name.").
			With("db_name", name)
	}
	return nil
}
