package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
)

// QueueEntryRepository defines the persistence boundary for queue entries.
//
// Implementations enforce three uniqueness rules at write time and report
// violations as conflict errors carrying these codes:
//   - queue number taken (QUEUE_NUMBER_TAKEN)
//   - a second active entry for the same patient and department (DUPLICATE_ACTIVE_ENTRY)
//   - a second in-progress entry for the same server (SERVER_BUSY)
type QueueEntryRepository interface {
	// Create inserts a new entry
	Create(ctx context.Context, entry *entities.QueueEntry) error

	// GetByID retrieves an entry by ID
	GetByID(ctx context.Context, id string) (*entities.QueueEntry, error)

	// GetByQueueNumber retrieves an entry by its ticket number
	GetByQueueNumber(ctx context.Context, queueNumber string) (*entities.QueueEntry, error)

	// List returns entries matching filter in dispatch order
	List(ctx context.Context, filter QueueEntryFilter) ([]*entities.QueueEntry, error)

	// Count returns the number of entries matching filter
	Count(ctx context.Context, filter QueueEntryFilter) (int, error)

	// AverageActualWait returns the mean actual wait of completed entries and the sample size
	AverageActualWait(ctx context.Context, query WaitSampleQuery) (float64, int, error)

	// NextForDispatch returns the first waiting entry of a department in
	// dispatch order, or nil when nobody is waiting
	NextForDispatch(ctx context.Context, department string) (*entities.QueueEntry, error)

	// ListQueueNumbers returns the ticket numbers issued for a department since the given time
	ListQueueNumbers(ctx context.Context, department string, since time.Time) ([]string, error)

	// QueueNumberExists reports whether any entry, on any day, holds the number
	QueueNumberExists(ctx context.Context, queueNumber string) (bool, error)

	// Transition persists entry's mutable fields only if the stored status is
	// still from. It reports false when another writer got there first.
	Transition(ctx context.Context, entry *entities.QueueEntry, from entities.QueueStatus) (bool, error)

	// LastAssignedDepartment returns the department of the server's most
	// recent assignment, or "" when it has none
	LastAssignedDepartment(ctx context.Context, serverID string) (string, error)

	// BusiestDepartment returns the department with the most waiting entries, or ""
	BusiestDepartment(ctx context.Context) (string, error)
}

// QueueEntryFilter defines filters for listing and counting entries
type QueueEntryFilter struct {
	Department   string
	ServiceType  entities.ServiceType
	Statuses     []entities.QueueStatus
	PatientID    string
	ServerID     string
	JoinedBefore *time.Time
	CreatedSince *time.Time
	Limit        int
}

// WaitSampleQuery scopes the completed entries averaged by AverageActualWait
type WaitSampleQuery struct {
	Department  string
	ServiceType entities.ServiceType
	Since       time.Time
}
