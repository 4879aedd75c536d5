package database

import (
	"context"
	"fmt"

	"github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/postgres"
)

// Constraint names referenced when translating unique violations.
const (
	constraintQueueNumber         = "queue_entries_queue_number_key"
	constraintActivePerDepartment = "queue_entries_one_active_per_patient_department"
	constraintInProgressPerServer = "queue_entries_one_in_progress_per_server"
	constraintCardNumber          = "patients_card_number_key"
)

// schema is idempotent; the partial unique indexes carry the queue invariants.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id          TEXT PRIMARY KEY,
		card_number TEXT NOT NULL,
		full_name   TEXT NOT NULL,
		phone       TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		CONSTRAINT patients_card_number_key UNIQUE (card_number)
	)`,
	`CREATE TABLE IF NOT EXISTS staff (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		role       TEXT NOT NULL CHECK (role IN ('doctor', 'lab_technician')),
		department TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id           TEXT PRIMARY KEY,
		patient_id   TEXT REFERENCES patients (id),
		card_number  TEXT NOT NULL,
		department   TEXT NOT NULL,
		scheduled_at TIMESTAMPTZ NOT NULL,
		status       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS appointments_card_number_idx ON appointments (card_number)`,
	`CREATE TABLE IF NOT EXISTS queue_entries (
		id                  TEXT PRIMARY KEY,
		queue_number        TEXT NOT NULL,
		department          TEXT NOT NULL,
		service_type        TEXT NOT NULL,
		priority            TEXT NOT NULL,
		priority_rank       SMALLINT NOT NULL,
		status              TEXT NOT NULL,
		patient_id          TEXT NOT NULL REFERENCES patients (id),
		server_id           TEXT REFERENCES staff (id),
		joined_at           TIMESTAMPTZ NOT NULL,
		service_start_time  TIMESTAMPTZ,
		service_end_time    TIMESTAMPTZ,
		estimated_wait_time INTEGER NOT NULL DEFAULT 0,
		actual_wait_time    INTEGER,
		notes               TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL,
		CONSTRAINT queue_entries_queue_number_key UNIQUE (queue_number)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS queue_entries_one_active_per_patient_department
		ON queue_entries (patient_id, department)
		WHERE status IN ('pending_lab_approval', 'waiting', 'in_progress')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS queue_entries_one_in_progress_per_server
		ON queue_entries (server_id)
		WHERE status = 'in_progress'`,
	`CREATE INDEX IF NOT EXISTS queue_entries_dispatch_idx
		ON queue_entries (department, status, priority_rank DESC, joined_at, queue_number)`,
	`CREATE INDEX IF NOT EXISTS queue_entries_department_created_idx
		ON queue_entries (department, created_at)`,
	`CREATE TABLE IF NOT EXISTS lab_requests (
		id               TEXT PRIMARY KEY,
		queue_entry_id   TEXT NOT NULL REFERENCES queue_entries (id),
		patient_id       TEXT NOT NULL,
		requested_by     TEXT NOT NULL,
		handled_by       TEXT,
		test_name        TEXT NOT NULL,
		notes            TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		result           TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL,
		completed_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS lab_requests_queue_entry_idx ON lab_requests (queue_entry_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS queue_notifications (
		id            TEXT PRIMARY KEY,
		entry_id      TEXT NOT NULL,
		event_type    TEXT NOT NULL,
		channel       TEXT NOT NULL,
		recipient     TEXT NOT NULL,
		body          TEXT NOT NULL,
		status        TEXT NOT NULL,
		message_id    TEXT,
		error_message TEXT,
		sent_at       TIMESTAMPTZ,
		failed_at     TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS queue_notifications_entry_idx ON queue_notifications (entry_id, created_at)`,
}

// EnsureSchema creates the queue tables and indexes when missing
func EnsureSchema(ctx context.Context, client *postgres.Client) error {
	for i, stmt := range schema {
		if _, err := client.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i, err)
		}
	}
	return nil
}
