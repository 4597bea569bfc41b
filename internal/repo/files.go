package repo

import (
	"context"
	"database/sql"

	"civicdesk/internal/domain"
)

const fileColumns = `id,title,reference_number,department_id,status,priority,COALESCE(assigned_to,''),COALESCE(description,''),created_at,updated_at,version`

func scanFile(row rowScanner) (domain.File, error) {
	var f domain.File
	var status, priority string
	err := row.Scan(&f.ID, &f.Title, &f.ReferenceNumber, &f.DepartmentID, &status, &priority, &f.AssignedTo, &f.Description,
		&f.CreatedAt, &f.UpdatedAt, &f.Version)
	if err != nil {
		return f, notFoundOr(err)
	}
	f.Status = domain.FileStatus(status)
	f.Priority = domain.Priority(priority)
	return f, nil
}

// InsertFile stores the file row only; history goes through AppendFileHistory.
func (r Repo) InsertFile(ctx context.Context, tx *sql.Tx, f domain.File) error {
	_, err := r.on(tx).ExecContext(ctx, r.q(`INSERT INTO files(id,title,reference_number,department_id,status,priority,assigned_to,description,created_at,updated_at,version) VALUES (?,?,?,?,?,?,?,?,?,?,?)`),
		f.ID, f.Title, f.ReferenceNumber, f.DepartmentID, string(f.Status), string(f.Priority), nullable(f.AssignedTo), nullable(f.Description),
		f.CreatedAt, f.UpdatedAt, f.Version)
	return err
}

func (r Repo) GetFile(ctx context.Context, id string) (domain.File, error) {
	return r.GetFileTx(ctx, nil, id)
}

// GetFileTx loads the file and its full history.
func (r Repo) GetFileTx(ctx context.Context, tx *sql.Tx, id string) (domain.File, error) {
	f, err := scanFile(r.on(tx).QueryRowContext(ctx, r.q(`SELECT `+fileColumns+` FROM files WHERE id=?`), id))
	if err != nil {
		return f, err
	}
	f.History, err = r.FileHistoryTx(ctx, tx, id)
	return f, err
}

// UpdateFileState writes status/assignment/priority and bumps the version when the
// stored version still equals expected.
func (r Repo) UpdateFileState(ctx context.Context, tx *sql.Tx, f domain.File, expected int64) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, r.q(`UPDATE files SET status=?, priority=?, assigned_to=?, description=?, updated_at=?, version=version+1 WHERE id=? AND version=?`),
		string(f.Status), string(f.Priority), nullable(f.AssignedTo), nullable(f.Description), f.UpdatedAt, f.ID, expected)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

// AppendFileHistory adds entry after the last recorded step of the file.
func (r Repo) AppendFileHistory(ctx context.Context, tx *sql.Tx, fileID string, entry domain.HistoryEntry) error {
	q := r.on(tx)
	var next int
	if err := q.QueryRowContext(ctx, r.q(`SELECT COALESCE(MAX(seq),0)+1 FROM file_history WHERE file_id=?`), fileID).Scan(&next); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, r.q(`INSERT INTO file_history(file_id,seq,stage,ts,notes,updated_by) VALUES (?,?,?,?,?,?)`),
		fileID, next, entry.Stage, entry.Timestamp, entry.Notes, entry.UpdatedBy)
	return err
}

func (r Repo) FileHistoryTx(ctx context.Context, tx *sql.Tx, fileID string) ([]domain.HistoryEntry, error) {
	rows, err := r.on(tx).QueryContext(ctx, r.q(`SELECT stage,ts,notes,updated_by FROM file_history WHERE file_id=? ORDER BY seq ASC`), fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	history := []domain.HistoryEntry{}
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.Stage, &h.Timestamp, &h.Notes, &h.UpdatedBy); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ListFilesByDepartment returns files most recently updated first, each with history.
func (r Repo) ListFilesByDepartment(ctx context.Context, departmentID string) ([]domain.File, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT `+fileColumns+` FROM files WHERE department_id=? ORDER BY updated_at DESC, id DESC`), departmentID)
	if err != nil {
		return nil, err
	}
	var res []domain.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	out := make([]domain.File, 0, len(res))
	for _, f := range res {
		if f.History, err = r.FileHistoryTx(ctx, nil, f.ID); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
