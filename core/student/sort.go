package student

import (
	"sort"
	"strings"

	"github.com/trezcool/playmate/core"
)

// Match reports whether s passes every set field of the (cleaned) filter.
func (qf QueryFilter) Match(s Student) bool {
	if qf.Search != "" &&
		!strings.Contains(strings.ToLower(s.ID), qf.Search) &&
		!strings.Contains(strings.ToLower(s.Name), qf.Search) {
		return false
	}
	if qf.Belt != "" && !strings.EqualFold(s.Belt, qf.Belt) {
		return false
	}
	if qf.Gender != "" && s.Gender != qf.Gender {
		return false
	}
	return true
}

// Sort applies orderings on id, name, belt and updated_at, then id ascending.
// Unknown fields are ignored.
func Sort(students []Student, orderings ...core.DBOrdering) {
	compare := func(a, b Student, field string) (int, bool) {
		switch field {
		case "id":
			return strings.Compare(a.ID, b.ID), true
		case "name":
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), true
		case "belt":
			return strings.Compare(strings.ToLower(a.Belt), strings.ToLower(b.Belt)), true
		case "updated_at":
			switch {
			case a.UpdatedAt.Before(b.UpdatedAt):
				return -1, true
			case a.UpdatedAt.After(b.UpdatedAt):
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}

	ords := make([]core.DBOrdering, 0, len(orderings)+1)
	ords = append(ords, orderings...)
	ords = append(ords, core.DBOrdering{Field: "id", Ascending: true})
	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range ords {
			cmp, ok := compare(students[i], students[j], ord.Field)
			if !ok || cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}
