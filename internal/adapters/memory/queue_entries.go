package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

type queueEntryRepo struct {
	s *Store
}

// conflictFor checks entry against the unique rules, ignoring the row with the same ID.
// Callers hold the write lock.
func (r *queueEntryRepo) conflictFor(entry *entities.QueueEntry, checkNumber bool) error {
	for _, existing := range r.s.entries {
		if existing.ID == entry.ID {
			continue
		}
		if checkNumber && existing.QueueNumber == entry.QueueNumber {
			return apperrors.NewConflictError("queue number already issued").WithCode(apperrors.CodeQueueNumberTaken)
		}
		if entry.Status.IsActive() && existing.Status.IsActive() &&
			existing.PatientID == entry.PatientID && existing.Department == entry.Department {
			return apperrors.NewConflictError("patient already has an active entry in this department").
				WithCode(apperrors.CodeDuplicateActiveEntry)
		}
		if entry.Status == entities.QueueStatusInProgress && existing.Status == entities.QueueStatusInProgress &&
			entry.ServerID != nil && existing.AssignedTo(*entry.ServerID) {
			return apperrors.NewConflictError("server already has a patient in progress").WithCode(apperrors.CodeServerBusy)
		}
	}
	return nil
}

func (r *queueEntryRepo) Create(ctx context.Context, entry *entities.QueueEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.entries[entry.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("queue entry %s already exists", entry.ID))
	}
	if err := r.conflictFor(entry, true); err != nil {
		return err
	}
	r.s.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *queueEntryRepo) GetByID(ctx context.Context, id string) (*entities.QueueEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if e, ok := r.s.entries[id]; ok {
		return e.Clone(), nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("queue entry with id %s not found", id)).
		WithCode(apperrors.CodeEntryNotFound)
}

func (r *queueEntryRepo) GetByQueueNumber(ctx context.Context, queueNumber string) (*entities.QueueEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range r.s.entries {
		if e.QueueNumber == queueNumber {
			return e.Clone(), nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("queue number %s not found", queueNumber)).
		WithCode(apperrors.CodeEntryNotFound)
}

func matches(e *entities.QueueEntry, f repositories.QueueEntryFilter) bool {
	if f.Department != "" && e.Department != f.Department {
		return false
	}
	if f.ServiceType != "" && e.ServiceType != f.ServiceType {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if e.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PatientID != "" && e.PatientID != f.PatientID {
		return false
	}
	if f.ServerID != "" && !e.AssignedTo(f.ServerID) {
		return false
	}
	if f.JoinedBefore != nil && !e.JoinedAt.Before(*f.JoinedBefore) {
		return false
	}
	if f.CreatedSince != nil && e.CreatedAt.Before(*f.CreatedSince) {
		return false
	}
	return true
}

func (r *queueEntryRepo) List(ctx context.Context, filter repositories.QueueEntryFilter) ([]*entities.QueueEntry, error) {
	r.s.mu.RLock()
	var out []*entities.QueueEntry
	for _, e := range r.s.entries {
		if matches(e, filter) {
			out = append(out, e.Clone())
		}
	}
	r.s.mu.RUnlock()

	entities.SortForDispatch(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *queueEntryRepo) Count(ctx context.Context, filter repositories.QueueEntryFilter) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, e := range r.s.entries {
		if matches(e, filter) {
			n++
		}
	}
	return n, nil
}

func (r *queueEntryRepo) AverageActualWait(ctx context.Context, q repositories.WaitSampleQuery) (float64, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	total, n := 0, 0
	for _, e := range r.s.entries {
		if e.Status != entities.QueueStatusComplete || e.ActualWaitTime == nil || e.CreatedAt.Before(q.Since) {
			continue
		}
		if q.Department != "" && e.Department != q.Department {
			continue
		}
		if q.ServiceType != "" && e.ServiceType != q.ServiceType {
			continue
		}
		total += *e.ActualWaitTime
		n++
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(total) / float64(n), n, nil
}

func (r *queueEntryRepo) NextForDispatch(ctx context.Context, department string) (*entities.QueueEntry, error) {
	entries, err := r.List(ctx, repositories.QueueEntryFilter{
		Department: department,
		Statuses:   []entities.QueueStatus{entities.QueueStatusWaiting},
		Limit:      1,
	})
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[0], nil
}

func (r *queueEntryRepo) ListQueueNumbers(ctx context.Context, department string, since time.Time) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var numbers []string
	for _, e := range r.s.entries {
		if e.Department == department && !e.CreatedAt.Before(since) {
			numbers = append(numbers, e.QueueNumber)
		}
	}
	return numbers, nil
}

func (r *queueEntryRepo) QueueNumberExists(ctx context.Context, queueNumber string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range r.s.entries {
		if e.QueueNumber == queueNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *queueEntryRepo) Transition(ctx context.Context, entry *entities.QueueEntry, from entities.QueueStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.entries[entry.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	if err := r.conflictFor(entry, false); err != nil {
		return false, err
	}

	next := stored.Clone()
	updated := entry.Clone()
	next.Status = updated.Status
	next.ServerID = updated.ServerID
	next.ServiceStartTime = updated.ServiceStartTime
	next.ServiceEndTime = updated.ServiceEndTime
	next.ActualWaitTime = updated.ActualWaitTime
	next.Notes = updated.Notes
	next.UpdatedAt = updated.UpdatedAt
	r.s.entries[entry.ID] = next
	return true, nil
}

func (r *queueEntryRepo) LastAssignedDepartment(ctx context.Context, serverID string) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var latest *entities.QueueEntry
	for _, e := range r.s.entries {
		if !e.AssignedTo(serverID) {
			continue
		}
		if latest == nil || assignedLater(e, latest) {
			latest = e
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.Department, nil
}

// assignedLater orders by service start (unset last), then last update
func assignedLater(a, b *entities.QueueEntry) bool {
	switch {
	case a.ServiceStartTime != nil && b.ServiceStartTime == nil:
		return true
	case a.ServiceStartTime == nil && b.ServiceStartTime != nil:
		return false
	case a.ServiceStartTime != nil && !a.ServiceStartTime.Equal(*b.ServiceStartTime):
		return a.ServiceStartTime.After(*b.ServiceStartTime)
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

func (r *queueEntryRepo) BusiestDepartment(ctx context.Context) (string, error) {
	r.s.mu.RLock()
	counts := make(map[string]int)
	for _, e := range r.s.entries {
		if e.Status == entities.QueueStatusWaiting {
			counts[e.Department]++
		}
	}
	r.s.mu.RUnlock()

	departments := make([]string, 0, len(counts))
	for d := range counts {
		departments = append(departments, d)
	}
	if len(departments) == 0 {
		return "", nil
	}
	sort.Slice(departments, func(i, j int) bool {
		if counts[departments[i]] != counts[departments[j]] {
			return counts[departments[i]] > counts[departments[j]]
		}
		return departments[i] < departments[j]
	})
	return departments[0], nil
}
