package export

const (
	ColumnID           = "id"
	ColumnCategoryName = "category_name"
	ColumnPictures     = "pictures"
)

// FixedColumns lead every header in this order.
var FixedColumns = []string{ColumnID, ColumnCategoryName, ColumnPictures}

// Registry is the run-scoped ordered set of output columns. Extra columns
// keep the order in which they were first observed.
type Registry struct {
	columns []string
	index   map[string]int
}

func NewRegistry() *Registry {
	r := &Registry{index: make(map[string]int)}
	for _, column := range FixedColumns {
		r.index[column] = len(r.columns)
		r.columns = append(r.columns, column)
	}
	return r
}

// Add registers an extra column and reports whether it was new.
func (r *Registry) Add(column string) bool {
	if _, ok := r.index[column]; ok {
		return false
	}
	r.index[column] = len(r.columns)
	r.columns = append(r.columns, column)
	return true
}

// IsFixed reports whether column is one of the always-present columns.
func IsFixed(column string) bool {
	for _, fixed := range FixedColumns {
		if fixed == column {
			return true
		}
	}
	return false
}

// Columns returns a copy of the header.
func (r *Registry) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

func (r *Registry) Len() int {
	return len(r.columns)
}
