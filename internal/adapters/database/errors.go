package database

import (
	"database/sql"
	"time"

	"github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// writeError translates a failed write into an AppError, turning the queue's
// unique constraints into conflicts the services can react to.
func writeError(message string, err error) error {
	constraint, ok := postgres.UniqueViolation(err)
	if !ok {
		return apperrors.NewInternalError(message, err)
	}

	switch constraint {
	case constraintQueueNumber:
		return apperrors.NewConflictError("queue number already issued").WithCode(apperrors.CodeQueueNumberTaken)
	case constraintActivePerDepartment:
		return apperrors.NewConflictError("patient already has an active entry in this department").
			WithCode(apperrors.CodeDuplicateActiveEntry)
	case constraintInProgressPerServer:
		return apperrors.NewConflictError("server already has a patient in progress").WithCode(apperrors.CodeServerBusy)
	case constraintCardNumber:
		return apperrors.NewConflictError("card number already issued").WithCode(apperrors.CodeCardNumberTaken)
	}
	return apperrors.NewConflictError("unique constraint violated: " + constraint)
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}
