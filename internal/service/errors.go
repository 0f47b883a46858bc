package service

import (
	"errors"

	"devlend/internal/database"
	"devlend/internal/domain"
	"devlend/internal/models"
)

const (
	msgAdminRequired = "Forbidden"
	msgAuthRequired  = "Unauthorized"
)

// storeError turns a repository error into a domain error. Domain errors
// pass through; a missing row becomes NotFound(notFound) when notFound is set.
func storeError(op string, err error, notFound string) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if notFound != "" && errors.Is(err, database.ErrNotFound) {
		return domain.NotFound("%s", notFound)
	}
	return domain.StoreFailure(op, err)
}

func requireUser(actor models.Actor) error {
	if actor.UserID == "" {
		return domain.Forbidden(msgAuthRequired)
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domain.Forbidden(msgAdminRequired)
	}
	return nil
}
