package service

import (
	"errors"
	"fmt"
	"strconv"

	"mini-erp/internal/apperr"
	"mini-erp/internal/store"
	"mini-erp/internal/util"
)

// translate maps store sentinels onto the business error taxonomy. Errors that
// already carry a kind pass through untouched.
func translate(err error, entity string, id int64) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(entity+" not found", strconv.FormatInt(id, 10))
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict(entity + " already exists")
	}
	return fmt.Errorf("%s %d: %w", entity, id, err)
}

// failureReason is the metric label for a rejected order operation.
func failureReason(err error) string {
	return string(apperr.KindOf(err))
}

// validateRequest checks v against its binding tags and reports every
// failed rule under message.
func validateRequest(message string, v interface{}) error {
	if err := util.ValidateStruct(v); err != nil {
		return apperr.Validation(message, util.ValidationDetails(err)...)
	}
	return nil
}
