package shotgun

import (
	"errors"
	"fmt"
)

// Project carries the registry fields routing depends on. SyncURLField holds
// the raw sg_jira_sync_url value; its shape is validated by SyncURLFromField.
type Project struct {
	ID           int64
	Name         string
	SyncURLField interface{}
}

// ErrNotFound marks lookups for entities the registry does not know.
// Implementations of registry interfaces wrap it so callers can distinguish
// "absent" from transport failures.
var ErrNotFound = errors.New("not found")

type notFoundError struct {
	entityType string
	id         int64
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.entityType, e.id)
}

func (e *notFoundError) Unwrap() error {
	return ErrNotFound
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
