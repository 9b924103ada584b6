package db

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"shortcut-service/internal/links"
)

// noLimit stands in for an unbounded LIMIT when only an offset is given.
const noLimit = math.MaxInt32

// Store implements links.Store on top of gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ links.Store = (*Store)(nil)

// NewStore wraps an open gorm connection.
func NewStore(conn *gorm.DB) *Store {
	return &Store{
		db:  conn,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Insert relies on the unique index on code, so concurrent inserts of the
// same code cannot both succeed.
func (s *Store) Insert(ctx context.Context, link *links.Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := fromCore(link)
	if err := s.db.Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return links.ErrDuplicateCode
		}
		return err
	}

	link.CreatedAt = row.CreatedAt
	link.UpdatedAt = row.UpdatedAt
	return nil
}

// FindByCode implements links.Store.FindByCode
func (s *Store) FindByCode(ctx context.Context, code string) (*links.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return findBy(s.db, "code = ?", code)
}

// FindByID implements links.Store.FindByID
func (s *Store) FindByID(ctx context.Context, id string) (*links.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return findBy(s.db, "id = ?", id)
}

// UpdateTarget changes the target only while the record is active; the status
// condition is part of the UPDATE so a concurrent retire cannot be overwritten.
func (s *Store) UpdateTarget(ctx context.Context, id, target string) (*links.Link, error) {
	return s.mutateActive(ctx, id, map[string]interface{}{
		"target": target,
	})
}

// IncrementVisits bumps the counter inside the database and reads the
// post-increment row in the same transaction.
func (s *Store) IncrementVisits(ctx context.Context, id string) (*links.Link, error) {
	return s.mutateActive(ctx, id, map[string]interface{}{
		"visits": gorm.Expr("visits + ?", 1),
	})
}

// Retire implements links.Store.Retire
func (s *Store) Retire(ctx context.Context, id string) (*links.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *links.Link
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Link{}).
			Where("id = ? AND status = ?", id, string(links.StatusActive)).
			UpdateColumns(map[string]interface{}{
				"status":     string(links.StatusRetired),
				"updated_at": s.now(),
			})
		if res.Error != nil {
			return res.Error
		}

		// Zero rows means missing or already retired; both end in a read.
		link, err := findBy(tx, "id = ?", id)
		if err != nil {
			return err
		}
		result = link
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListActive implements links.Store.ListActive
func (s *Store) ListActive(ctx context.Context, page links.Page) ([]*links.Link, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	var rows []Link
	err := s.db.Transaction(func(tx *gorm.DB) error {
		active := tx.Model(&Link{}).Where("status = ?", string(links.StatusActive))
		if err := active.Count(&total).Error; err != nil {
			return err
		}

		query := active.Order("created_at DESC").Order("id DESC")
		switch {
		case page.Limit > 0:
			query = query.Limit(page.Limit)
		case page.Offset > 0:
			// sqlite rejects OFFSET without LIMIT
			query = query.Limit(noLimit)
		}
		if page.Offset > 0 {
			query = query.Offset(page.Offset)
		}
		return query.Find(&rows).Error
	})
	if err != nil {
		return nil, 0, err
	}

	result := make([]*links.Link, len(rows))
	for i := range rows {
		result[i] = rows[i].ToCore()
	}
	return result, total, nil
}

// mutateActive applies columns to an active record and returns the row as it
// is after the update. updated_at is always refreshed.
func (s *Store) mutateActive(ctx context.Context, id string, columns map[string]interface{}) (*links.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	columns["updated_at"] = s.now()

	var result *links.Link
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Link{}).
			Where("id = ? AND status = ?", id, string(links.StatusActive)).
			UpdateColumns(columns)
		if res.Error != nil {
			return res.Error
		}

		link, err := findBy(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			if link.IsRetired() {
				return links.ErrInvalidState
			}
			return links.ErrNotFound
		}
		result = link
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func findBy(conn *gorm.DB, query string, arg interface{}) (*links.Link, error) {
	var row Link
	if err := conn.Where(query, arg).First(&row).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, links.ErrNotFound
		}
		return nil, err
	}
	return row.ToCore(), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
