package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"ecosort/internal/dto"
	"ecosort/internal/model"
)

// CaptureRepository implements repository.CaptureRepository for SQLite.
type CaptureRepository struct {
	db *DB
}

func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

const captureColumns = `id, session_id, client_id, filename, filepath, classification, confidence, status, error, captured_at, created_at`

const insertCapture = `
	INSERT INTO captures (session_id, client_id, filename, filepath, classification, confidence, status, error, captured_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insertArgs(rec *model.CaptureRecord) []interface{} {
	// Timed out captures never got an image
	var capturedAt interface{}
	if !rec.CapturedAt.IsZero() {
		capturedAt = rec.CapturedAt.UTC()
	}
	return []interface{}{
		rec.SessionID, rec.ClientID, rec.Filename, rec.FilePath, string(rec.Classification),
		rec.Confidence, rec.Status, rec.Error, capturedAt, rec.CreatedAt.UTC(),
	}
}

// Insert adds a capture record and returns its id.
func (r *CaptureRepository) Insert(rec *model.CaptureRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertCapture, insertArgs(rec)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert capture: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds several capture records in one transaction.
func (r *CaptureRepository) InsertBatch(records []model.CaptureRecord) error {
	if len(records) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertCapture)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.Exec(insertArgs(&records[i])...); err != nil {
			return fmt.Errorf("failed to insert capture: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a capture by its id. It returns nil when there is none.
func (r *CaptureRepository) GetByID(id int64) (*model.CaptureRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+captureColumns+` FROM captures WHERE id = ?`, id)
	rec, err := scanCapture(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return rec, nil
}

// GetAll retrieves captures matching filter, newest first.
func (r *CaptureRepository) GetAll(filter *dto.CaptureFilter) ([]model.CaptureRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	query := `SELECT ` + captureColumns + ` FROM captures` + where + ` ORDER BY created_at DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	records := []model.CaptureRecord{}
	for rows.Next() {
		rec, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// GetTotalCount returns how many captures match filter.
func (r *CaptureRepository) GetTotalCount(filter *dto.CaptureFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM captures`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}
	return count, nil
}

// CountByClassification returns resolved captures per bin.
func (r *CaptureRepository) CountByClassification() (map[model.Category]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT classification, COUNT(*)
		FROM captures
		WHERE status = ?
		GROUP BY classification
	`, model.CaptureResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to count classifications: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Category]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan classification count: %w", err)
		}
		counts[model.Category(category)] = n
	}
	return counts, rows.Err()
}

// DeleteAll removes every capture record.
func (r *CaptureRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM captures`); err != nil {
		return fmt.Errorf("failed to delete captures: %w", err)
	}
	return nil
}

func filterClause(filter *dto.CaptureFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conds []string
	var args []interface{}

	if filter.Classification != "" {
		conds = append(conds, "classification = ?")
		args = append(args, string(filter.Classification))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.After.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.After)
	}
	if !filter.Before.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.Before)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCapture(s scanner) (*model.CaptureRecord, error) {
	var rec model.CaptureRecord
	var classification string
	var capturedAt sql.NullTime

	err := s.Scan(&rec.ID, &rec.SessionID, &rec.ClientID, &rec.Filename, &rec.FilePath,
		&classification, &rec.Confidence, &rec.Status, &rec.Error, &capturedAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.Classification = model.Category(classification)
	if capturedAt.Valid {
		rec.CapturedAt = capturedAt.Time
	}
	return &rec, nil
}
