package core

// DBOrdering is a single "ORDER BY" term requested by a client, e.g. `?ordering=-name,roll_no`.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// FilterOrderings drops orderings on fields that are not allowed.
func FilterOrderings(orderings []DBOrdering, allowed ...string) []DBOrdering {
	valid := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		for _, fld := range allowed {
			if ord.Field == fld {
				valid = append(valid, ord)
				break
			}
		}
	}
	return valid
}
