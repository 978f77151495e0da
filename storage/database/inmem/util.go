package inmemdb

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
)

func newID() string {
	return uuid.New().String()
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// sortStudents orders by roll number unless other (valid) orderings are given.
func sortStudents(students []ledger.Student, ordering []core.DBOrdering) {
	ordering = core.FilterOrderings(ordering, ledger.StudentOrderingFields...)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "roll_no", Ascending: true}}
	}
	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareStudents(students[i], students[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return students[i].ID < students[j].ID
	})
}

func compareStudents(a, b ledger.Student, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "roll_no":
		return strings.Compare(a.RollNo, b.RollNo)
	case "class":
		return strings.Compare(a.Class, b.Class)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}
