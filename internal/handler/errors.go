package handler

import (
	"errors"

	"github.com/cuckooeats/backoffice/internal/service"
)

func isGeneratorInputError(err error) bool {
	return errors.Is(err, service.ErrInvalidCount) ||
		errors.Is(err, service.ErrNoProducts) ||
		errors.Is(err, service.ErrNoCustomers)
}
