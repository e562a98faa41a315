package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Garment is a catalog image recorded in the database.
type Garment struct {
	ID        string    `json:"id"`
	Group     string    `json:"group"`
	Position  int       `json:"position"`
	FileName  string    `json:"file_name"`
	Path      string    `json:"path"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GarmentFile is one image found while scanning the catalog directory.
type GarmentFile struct {
	Group    string
	Position int
	FileName string
	Path     string
}

// GarmentRepository keeps the garment index.
type GarmentRepository struct {
	db *sql.DB
}

// Garments returns the garment repository for this store.
func (s *Store) Garments() *GarmentRepository {
	return &GarmentRepository{db: s.db}
}

const garmentColumns = `id, grp, position, file_name, path, available, created_at, updated_at`

// Sync records the files of a freshly loaded catalog. Garments are matched
// by group and file name, so an image keeps its ID across restarts even when
// its position changes. Rows whose file is gone are marked unavailable.
func (r *GarmentRepository) Sync(files []GarmentFile) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(`UPDATE garments SET available = 0`); err != nil {
		return fmt.Errorf("reset availability: %w", err)
	}

	for _, f := range files {
		var id string
		err := tx.QueryRow(
			`SELECT id FROM garments WHERE grp = ? AND file_name = ?`,
			f.Group, f.FileName,
		).Scan(&id)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.Exec(
				`INSERT INTO garments (id, grp, position, file_name, path, available, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
				uuid.New().String(), f.Group, f.Position, f.FileName, f.Path, now, now,
			)
		case err == nil:
			_, err = tx.Exec(
				`UPDATE garments SET position = ?, path = ?, available = 1, updated_at = ? WHERE id = ?`,
				f.Position, f.Path, now, id,
			)
		}
		if err != nil {
			return fmt.Errorf("sync garment %s/%s: %w", f.Group, f.FileName, err)
		}
	}

	return tx.Commit()
}

// List returns the available garments, male group first, in position order.
func (r *GarmentRepository) List() ([]*Garment, error) {
	rows, err := r.db.Query(
		`SELECT ` + garmentColumns + ` FROM garments
		 WHERE available = 1
		 ORDER BY CASE grp WHEN 'male' THEN 0 ELSE 1 END, position`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var garments []*Garment
	for rows.Next() {
		g, err := scanGarment(rows)
		if err != nil {
			return nil, err
		}
		garments = append(garments, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return garments, nil
}

// GetByID retrieves a garment by its ID.
func (r *GarmentRepository) GetByID(id string) (*Garment, error) {
	row := r.db.QueryRow(`SELECT `+garmentColumns+` FROM garments WHERE id = ?`, id)
	g, err := scanGarment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// GetByPosition retrieves the available garment at a group position.
func (r *GarmentRepository) GetByPosition(group string, position int) (*Garment, error) {
	row := r.db.QueryRow(
		`SELECT `+garmentColumns+` FROM garments WHERE grp = ? AND position = ? AND available = 1`,
		group, position,
	)
	g, err := scanGarment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGarment(s scanner) (*Garment, error) {
	g := &Garment{}
	err := s.Scan(&g.ID, &g.Group, &g.Position, &g.FileName, &g.Path, &g.Available, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}
