package app

import (
	"errors"

	"groundchat/internal/model"
)

func isTransient(err error) bool {
	return errors.Is(err, model.ErrServiceUnavailable) || errors.Is(err, model.ErrTimeout)
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
