package postgres

import (
	"fmt"
	"strings"
)

// whereClause collects AND-ed conditions and numbers their placeholders.
// Conditions use "?" for each argument.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ") + "\n"
}

// page appends LIMIT/OFFSET placeholders and returns the clause with its args.
func (w *whereClause) page(limit, offset int) (string, []any) {
	args := append(append([]any(nil), w.args...), limit, offset)
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

// setClause collects "column = $n" assignments for an UPDATE. Placeholders
// are numbered from $1 in the order columns are added.
type setClause struct {
	sets []string
	args []any
}

func (s *setClause) add(column string, value any) {
	s.args = append(s.args, value)
	s.sets = append(s.sets, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (s *setClause) empty() bool {
	return len(s.sets) == 0
}

func (s *setClause) String() string {
	return "SET " + strings.Join(s.sets, ", ")
}

// whereID appends id as the final argument and returns the matching
// condition with the full argument list.
func (s *setClause) whereID(id string) (string, []any) {
	args := append(append([]any(nil), s.args...), id)
	return fmt.Sprintf("WHERE id = $%d", len(args)), args
}

func likePattern(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(search)
	return "%" + escaped + "%"
}
