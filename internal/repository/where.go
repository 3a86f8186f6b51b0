package repository

import (
	"strconv"
	"strings"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

// where accumulates AND-ed conditions with numbered pgx placeholders.
type where struct {
	clauses []string
	args    []interface{}
}

// arg registers a value and returns its placeholder.
func (w *where) arg(v interface{}) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// add appends a ready-made condition. Use arg to build its placeholders.
func (w *where) add(cond string) {
	w.clauses = append(w.clauses, cond)
}

func (w *where) status(column string, s model.StatusFilter) {
	switch s {
	case model.StatusAll:
	case model.StatusInactive:
		w.add(column + " = FALSE")
	default:
		w.add(column + " = TRUE")
	}
}

func (w *where) search(term string, columns ...string) {
	if strings.TrimSpace(term) == "" || len(columns) == 0 {
		return
	}
	p := w.arg(likePattern(term))
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = "LOWER(" + c + ") LIKE " + p + ` ESCAPE '\'`
	}
	w.add("(" + strings.Join(parts, " OR ") + ")")
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// limit appends LIMIT/OFFSET placeholders for q to the args.
func (w *where) limit(q model.ListQuery) string {
	page, perPage := response.NormalizePage(q.Page, q.PerPage)
	return " LIMIT " + w.arg(perPage) + " OFFSET " + w.arg((page-1)*perPage)
}
