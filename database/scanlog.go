package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Workflow outcome labels recorded in scan history.
const (
	ScanResultMatched      = "matched"
	ScanResultUnidentified = "unidentified"
	ScanResultEnrolled     = "enrolled"
	ScanResultPartial      = "partial_enrollment"
	ScanResultFailed       = "failed"
)

// ScanEvent is one row of workflow history.
type ScanEvent struct {
	ID         int64  `json:"id"`
	Workflow   string `json:"workflow"`
	PersonID   *int64 `json:"person_id,omitempty"`
	Result     string `json:"result"`
	Score      *int   `json:"score,omitempty"`
	Detail     string `json:"detail,omitempty"`
	OccurredAt int64  `json:"occurred_at"`
}

// ScanLog records workflow outcomes against a raw SQL handle.
type ScanLog struct {
	DB *sql.DB
}

// Record appends one outcome row stamped with the current time.
func (s *ScanLog) Record(workflow string, personID *int64, result string, score *int, detail string) error {
	return InsertScanEvent(s.DB, ScanEvent{
		Workflow:   workflow,
		PersonID:   personID,
		Result:     result,
		Score:      score,
		Detail:     detail,
		OccurredAt: time.Now().Unix(),
	})
}

// InitScanLog creates the scan_events history table.
func InitScanLog(db *sql.DB) error {
	sqlStmt := `
	CREATE TABLE IF NOT EXISTS scan_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		workflow TEXT NOT NULL,
		person_id INTEGER,
		result TEXT NOT NULL,
		score INTEGER,
		detail TEXT NOT NULL DEFAULT '',
		occurred_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(sqlStmt); err != nil {
		return fmt.Errorf("failed to create scan_events table: %w", err)
	}
	return nil
}

// InsertScanEvent appends one workflow outcome to the history
func InsertScanEvent(db *sql.DB, ev ScanEvent) error {
	queryBuilder := psql.Insert("scan_events").
		Columns("workflow", "person_id", "result", "score", "detail", "occurred_at").
		Values(ev.Workflow, ev.PersonID, ev.Result, ev.Score, ev.Detail, ev.OccurredAt)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for InsertScanEvent: %w", err)
	}

	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to insert scan event: %w", err)
	}
	return nil
}

// ListScanEvents retrieves up to limit history rows, newest first
func ListScanEvents(db *sql.DB, limit int) ([]ScanEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	queryBuilder := psql.Select("id", "workflow", "person_id", "result", "score", "detail", "occurred_at").
		From("scan_events").
		OrderBy("id DESC").
		Limit(uint64(limit))

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListScanEvents: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan events: %w", err)
	}
	defer rows.Close()

	var events []ScanEvent
	for rows.Next() {
		var (
			ev    ScanEvent
			pid   sql.NullInt64
			score sql.NullInt64
		)
		if err := rows.Scan(&ev.ID, &ev.Workflow, &pid, &ev.Result, &score, &ev.Detail, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan scan_events row: %w", err)
		}
		if pid.Valid {
			v := pid.Int64
			ev.PersonID = &v
		}
		if score.Valid {
			v := int(score.Int64)
			ev.Score = &v
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
