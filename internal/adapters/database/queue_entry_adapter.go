package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

const queueEntriesTable = "queue_entries"

var queueEntryColumns = []interface{}{
	"id", "queue_number", "department", "service_type", "priority", "status",
	"patient_id", "server_id", "joined_at", "service_start_time", "service_end_time",
	"estimated_wait_time", "actual_wait_time", "notes", "created_at", "updated_at",
}

// dispatchOrder mirrors entities.DispatchLess in SQL
var dispatchOrder = []exp.OrderedExpression{
	goqu.C("priority_rank").Desc(),
	goqu.C("joined_at").Asc(),
	goqu.C("queue_number").Asc(),
}

// QueueEntryAdapter implements the QueueEntryRepository interface
type QueueEntryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewQueueEntryAdapter creates a new queue entry adapter
func NewQueueEntryAdapter(client *postgres.Client) repositories.QueueEntryRepository {
	return &QueueEntryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueEntry(row rowScanner) (*entities.QueueEntry, error) {
	entry := &entities.QueueEntry{}
	var serverID sql.NullString
	var start, end sql.NullTime
	var actual sql.NullInt64

	err := row.Scan(
		&entry.ID,
		&entry.QueueNumber,
		&entry.Department,
		&entry.ServiceType,
		&entry.Priority,
		&entry.Status,
		&entry.PatientID,
		&serverID,
		&entry.JoinedAt,
		&start,
		&end,
		&entry.EstimatedWaitTime,
		&actual,
		&entry.Notes,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.ServerID = stringPtr(serverID)
	entry.ServiceStartTime = timePtr(start)
	entry.ServiceEndTime = timePtr(end)
	entry.ActualWaitTime = intPtr(actual)
	return entry, nil
}

// Create inserts a new queue entry
func (a *QueueEntryAdapter) Create(ctx context.Context, entry *entities.QueueEntry) error {
	record := goqu.Record{
		"id":                  entry.ID,
		"queue_number":        entry.QueueNumber,
		"department":          entry.Department,
		"service_type":        entry.ServiceType,
		"priority":            entry.Priority,
		"priority_rank":       entry.Priority.Rank(),
		"status":              entry.Status,
		"patient_id":          entry.PatientID,
		"server_id":           nullableString(entry.ServerID),
		"joined_at":           entry.JoinedAt,
		"service_start_time":  nullableTime(entry.ServiceStartTime),
		"service_end_time":    nullableTime(entry.ServiceEndTime),
		"estimated_wait_time": entry.EstimatedWaitTime,
		"actual_wait_time":    nullableInt(entry.ActualWaitTime),
		"notes":               entry.Notes,
		"created_at":          entry.CreatedAt,
		"updated_at":          entry.UpdatedAt,
	}

	query, args, err := a.db.Insert(queueEntriesTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError("failed to create queue entry", err)
	}
	return nil
}

func (a *QueueEntryAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.QueueEntry, error) {
	query, args, err := a.db.Select(queueEntryColumns...).
		From(queueEntriesTable).
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entry, err := scanQueueEntry(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound).WithCode(apperrors.CodeEntryNotFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get queue entry", err)
	}
	return entry, nil
}

// GetByID retrieves a queue entry by ID
func (a *QueueEntryAdapter) GetByID(ctx context.Context, id string) (*entities.QueueEntry, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("queue entry with id %s not found", id))
}

// GetByQueueNumber retrieves a queue entry by ticket number
func (a *QueueEntryAdapter) GetByQueueNumber(ctx context.Context, queueNumber string) (*entities.QueueEntry, error) {
	return a.getOne(ctx, goqu.Ex{"queue_number": queueNumber}, fmt.Sprintf("queue number %s not found", queueNumber))
}

func applyEntryFilter(ds *goqu.SelectDataset, filter repositories.QueueEntryFilter) *goqu.SelectDataset {
	if filter.Department != "" {
		ds = ds.Where(goqu.Ex{"department": filter.Department})
	}
	if filter.ServiceType != "" {
		ds = ds.Where(goqu.Ex{"service_type": filter.ServiceType})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		ds = ds.Where(goqu.C("status").In(statuses))
	}
	if filter.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientID})
	}
	if filter.ServerID != "" {
		ds = ds.Where(goqu.Ex{"server_id": filter.ServerID})
	}
	if filter.JoinedBefore != nil {
		ds = ds.Where(goqu.C("joined_at").Lt(*filter.JoinedBefore))
	}
	if filter.CreatedSince != nil {
		ds = ds.Where(goqu.C("created_at").Gte(*filter.CreatedSince))
	}
	return ds
}

// List returns entries matching filter in dispatch order
func (a *QueueEntryAdapter) List(ctx context.Context, filter repositories.QueueEntryFilter) ([]*entities.QueueEntry, error) {
	ds := applyEntryFilter(a.db.Select(queueEntryColumns...).From(queueEntriesTable), filter).
		Order(dispatchOrder...)
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list queue entries", err)
	}
	defer rows.Close()

	var entries []*entities.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan queue entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate queue entries", err)
	}
	return entries, nil
}

// Count returns the number of entries matching filter
func (a *QueueEntryAdapter) Count(ctx context.Context, filter repositories.QueueEntryFilter) (int, error) {
	query, args, err := applyEntryFilter(
		a.db.Select(goqu.COUNT("*")).From(queueEntriesTable), filter,
	).ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count queue entries", err)
	}
	return count, nil
}

// AverageActualWait returns the mean actual wait of completed entries
func (a *QueueEntryAdapter) AverageActualWait(ctx context.Context, q repositories.WaitSampleQuery) (float64, int, error) {
	ds := a.db.Select(goqu.AVG("actual_wait_time"), goqu.COUNT("actual_wait_time")).
		From(queueEntriesTable).
		Where(
			goqu.Ex{"status": entities.QueueStatusComplete},
			goqu.C("created_at").Gte(q.Since),
		)
	if q.Department != "" {
		ds = ds.Where(goqu.Ex{"department": q.Department})
	}
	if q.ServiceType != "" {
		ds = ds.Where(goqu.Ex{"service_type": q.ServiceType})
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, 0, apperrors.NewInternalError("failed to build average query", err)
	}

	var avg sql.NullFloat64
	var samples int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&avg, &samples); err != nil {
		return 0, 0, apperrors.NewInternalError("failed to average wait times", err)
	}
	if !avg.Valid {
		return 0, 0, nil
	}
	return avg.Float64, samples, nil
}

// NextForDispatch returns the first waiting entry of a department, or nil
func (a *QueueEntryAdapter) NextForDispatch(ctx context.Context, department string) (*entities.QueueEntry, error) {
	entries, err := a.List(ctx, repositories.QueueEntryFilter{
		Department: department,
		Statuses:   []entities.QueueStatus{entities.QueueStatusWaiting},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// ListQueueNumbers returns ticket numbers issued for a department since the given time
func (a *QueueEntryAdapter) ListQueueNumbers(ctx context.Context, department string, since time.Time) ([]string, error) {
	query, args, err := a.db.Select("queue_number").
		From(queueEntriesTable).
		Where(
			goqu.Ex{"department": department},
			goqu.C("created_at").Gte(since),
		).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list queue numbers", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, apperrors.NewInternalError("failed to scan queue number", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate queue numbers", err)
	}
	return numbers, nil
}

// QueueNumberExists reports whether any entry holds the number
func (a *QueueEntryAdapter) QueueNumberExists(ctx context.Context, queueNumber string) (bool, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From(queueEntriesTable).
		Where(goqu.Ex{"queue_number": queueNumber}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to probe queue number", err)
	}
	return count > 0, nil
}

// Transition writes entry's mutable fields if its stored status is still from
func (a *QueueEntryAdapter) Transition(ctx context.Context, entry *entities.QueueEntry, from entities.QueueStatus) (bool, error) {
	query, args, err := a.db.Update(queueEntriesTable).
		Set(goqu.Record{
			"status":             entry.Status,
			"server_id":          nullableString(entry.ServerID),
			"service_start_time": nullableTime(entry.ServiceStartTime),
			"service_end_time":   nullableTime(entry.ServiceEndTime),
			"actual_wait_time":   nullableInt(entry.ActualWaitTime),
			"notes":              entry.Notes,
			"updated_at":         entry.UpdatedAt,
		}).
		Where(goqu.Ex{"id": entry.ID, "status": from}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, writeError("failed to update queue entry", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return rowsAffected == 1, nil
}

// LastAssignedDepartment returns the department of the server's latest assignment
func (a *QueueEntryAdapter) LastAssignedDepartment(ctx context.Context, serverID string) (string, error) {
	query, args, err := a.db.Select("department").
		From(queueEntriesTable).
		Where(goqu.Ex{"server_id": serverID}).
		Order(goqu.C("service_start_time").Desc().NullsLast(), goqu.C("updated_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build query", err)
	}

	var department string
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&department)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewInternalError("failed to get last assigned department", err)
	}
	return department, nil
}

// BusiestDepartment returns the department with the most waiting entries
func (a *QueueEntryAdapter) BusiestDepartment(ctx context.Context) (string, error) {
	query, args, err := a.db.Select(goqu.C("department"), goqu.COUNT("*").As("waiting")).
		From(queueEntriesTable).
		Where(goqu.Ex{"status": entities.QueueStatusWaiting}).
		GroupBy("department").
		Order(goqu.I("waiting").Desc(), goqu.C("department").Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build query", err)
	}

	var department string
	var waiting int
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&department, &waiting)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewInternalError("failed to get busiest department", err)
	}
	return department, nil
}
