// Package domain provides core business logic interfaces and types.
package domain

import (
	"inspecta/internal/core/apperror"
)

// NormalizeValidationErr keeps structured errors and wraps plain ones as validation errors.
func NormalizeValidationErr(err error) error {
	if err == nil {
		return nil
	}
	// If entity already returns structured AppError, keep it.
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

// NormalizeGetErr maps repository read errors to errors naming the entity.
func NormalizeGetErr(err error, entityName string, idOrCode any) error {
	if err == nil {
		return nil
	}
	// Preserve existing AppError, but ensure not-found is mapped to the correct entity name.
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(entityName, idOrCode)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", entityName).WithDetail("id", idOrCode)
}
