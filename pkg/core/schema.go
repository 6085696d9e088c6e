package core

// ColumnKind is the type of the values stored in one column.
type ColumnKind string

const (
	ColumnString   ColumnKind = "String"
	ColumnJSON     ColumnKind = "Json"
	ColumnInteger  ColumnKind = "Integer"
	ColumnDouble   ColumnKind = "Double"
	ColumnDate     ColumnKind = "Date"
	ColumnDuration ColumnKind = "Duration"
)

// IsNumeric reports whether values of this kind have a natural ordering on
// a numeric axis.
func (k ColumnKind) IsNumeric() bool {
	switch k {
	case ColumnInteger, ColumnDouble, ColumnDate, ColumnDuration:
		return true
	default:
		return false
	}
}

// ColumnDescription describes one column of a remote table.
type ColumnDescription struct {
	Name string     `json:"name" mapstructure:"name"`
	Kind ColumnKind `json:"kind" mapstructure:"kind"`
}

// Schema is an ordered snapshot of a remote table's columns. The client
// caches it per view; the server remains authoritative.
type Schema []ColumnDescription

// Find returns the description of the named column, or false if the schema
// does not contain it.
func (s Schema) Find(name string) (ColumnDescription, bool) {
	for _, cd := range s {
		if cd.Name == name {
			return cd, true
		}
	}
	return ColumnDescription{}, false
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, cd := range s {
		names[i] = cd.Name
	}
	return names
}

// ColumnOrientation is one sort key of a RecordOrder.
type ColumnOrientation struct {
	Column    ColumnDescription `json:"columnDescription" mapstructure:"columnDescription"`
	Ascending bool              `json:"isAscending" mapstructure:"isAscending"`
}

// RecordOrder is a lexicographic ordering over rows, major key first.
type RecordOrder []ColumnOrientation
