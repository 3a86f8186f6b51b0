package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// StatusFilter narrows lists by the is_active flag.
type StatusFilter string

const (
	StatusActive   StatusFilter = "active"
	StatusInactive StatusFilter = "inactive"
	StatusAll      StatusFilter = "all"
)

// ParseStatusFilter maps a query value to a StatusFilter. Anything unknown
// is treated as active.
func ParseStatusFilter(s string) StatusFilter {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case StatusInactive:
		return StatusInactive
	case StatusAll:
		return StatusAll
	default:
		return StatusActive
	}
}

// ListQuery carries the parameters shared by every paginated list.
type ListQuery struct {
	Page    int          `form:"page"`
	PerPage int          `form:"per_page"`
	Search  string       `form:"search"`
	Status  StatusFilter `form:"status"`
}

// IntList is a list of ids stored as a JSON array.
type IntList []int

// Value implements driver.Valuer.
func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *IntList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = IntList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("model: unsupported IntList source")
	}
	var out []int
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

// Contains reports whether id is in the list.
func (l IntList) Contains(id int) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}
