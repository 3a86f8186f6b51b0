package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

// gormStore holds the CRUD plumbing shared by the ORM-backed repositories.
type gormStore[T any] struct {
	db *gorm.DB
}

func (s gormStore[T]) get(ctx context.Context, id interface{}, preloads ...string) (*T, error) {
	var out T
	tx := s.db.WithContext(ctx)
	for _, p := range preloads {
		tx = tx.Preload(p)
	}
	if err := tx.First(&out, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

func (s gormStore[T]) create(ctx context.Context, v *T) error {
	return mapError(s.db.WithContext(ctx).Create(v).Error)
}

// update writes the listed columns, including zero values.
func (s gormStore[T]) update(ctx context.Context, v *T, columns ...string) error {
	res := s.db.WithContext(ctx).Model(v).Select(columns).Updates(v)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s gormStore[T]) setActive(ctx context.Context, id interface{}, active bool) error {
	res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s gormStore[T]) existsActive(ctx context.Context, id interface{}) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(new(T)).Where("id = ? AND is_active = ?", id, true).Count(&n).Error
	return n > 0, mapError(err)
}

// page counts tx and then loads one page of it. Preloads apply to the
// page query only.
func (s gormStore[T]) page(tx *gorm.DB, q model.ListQuery, order string, preloads ...string) ([]T, int, error) {
	return s.pageSelect(tx, q, order, "", preloads...)
}

// pageSelect is page with an explicit select list for joined queries.
func (s gormStore[T]) pageSelect(tx *gorm.DB, q model.ListQuery, order, sel string, preloads ...string) ([]T, int, error) {
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	find := tx.Scopes(paginate(q)).Order(order)
	if sel != "" {
		find = find.Select(sel)
	}
	for _, p := range preloads {
		find = find.Preload(p)
	}
	items := make([]T, 0)
	if err := find.Find(&items).Error; err != nil {
		return nil, 0, mapError(err)
	}
	return items, int(total), nil
}

func paginate(q model.ListQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		page, perPage := response.NormalizePage(q.Page, q.PerPage)
		return db.Offset((page - 1) * perPage).Limit(perPage)
	}
}

// statusScope filters on <table>.is_active.
func statusScope(table string, status model.StatusFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch status {
		case model.StatusAll:
			return db
		case model.StatusInactive:
			return db.Where(table+".is_active = ?", false)
		default:
			return db.Where(table+".is_active = ?", true)
		}
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

// searchScope matches term against any of columns, ignoring case.
func searchScope(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if strings.TrimSpace(term) == "" || len(columns) == 0 {
			return db
		}
		pattern := likePattern(term)
		clauses := make([]string, len(columns))
		args := make([]interface{}, len(columns))
		for i, c := range columns {
			clauses[i] = "LOWER(" + c + `) LIKE ? ESCAPE '\'`
			args[i] = pattern
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
}
