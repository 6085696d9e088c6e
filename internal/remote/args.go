package remote

import "github.com/skylens-io/skylens/pkg/core"

// Argument records for the remote operations. Field names follow the wire
// contract of the compute service; all records are JSON-serializable and
// immutable once built.

// ZipArgs pairs the target object with another one.
type ZipArgs struct {
	Other core.Handle `json:"otherId"`
}

// SetOperationArgs applies a set-style operator to a paired object.
type SetOperationArgs struct {
	Operation core.SetOperation `json:"setOperation"`
}

// FindArgs searches rows for a string, starting below a given row.
type FindArgs struct {
	Order         core.RecordOrder `json:"order"`
	ToFind        string           `json:"toFind"`
	Regex         bool             `json:"regex"`
	SubString     bool             `json:"subString"`
	CaseSensitive bool             `json:"caseSensitive"`
	TopRow        []any            `json:"topRow,omitempty"`
	Next          bool             `json:"next"`
}

// QuantileArgs locates the row at a relative position in sorted order.
type QuantileArgs struct {
	Precision int              `json:"precision"`
	TableSize int64            `json:"tableSize"`
	Order     core.RecordOrder `json:"order"`
	Position  float64          `json:"position"`
	Seed      int64            `json:"seed"`
}

// ContainsArgs asks whether a row with the given values exists.
type ContainsArgs struct {
	Order core.RecordOrder `json:"order"`
	Row   []any            `json:"row"`
}

// LogFragmentArgs fetches the log lines surrounding one row.
type LogFragmentArgs struct {
	Schema    core.Schema `json:"schema"`
	Row       []any       `json:"row"`
	RowSchema core.Schema `json:"rowSchema"`
	Count     int         `json:"count"`
}

// NextKArgs fetches the next screenful of rows in sorted order.
type NextKArgs struct {
	Order        core.RecordOrder `json:"order"`
	FirstRow     []any            `json:"firstRow,omitempty"`
	RowsOnScreen int              `json:"rowsOnScreen"`
}

// HLogLogArgs estimates the distinct-value count of one column.
type HLogLogArgs struct {
	ColumnName string `json:"columnName"`
	Seed       int64  `json:"seed"`
}

// HeavyHittersArgs finds values occurring in more than Amount percent of
// rows. The same record serves both the exact-counting and the sampling
// variant; the operation name selects between them.
type HeavyHittersArgs struct {
	Columns   []core.ColumnDescription `json:"columns"`
	Amount    float64                  `json:"amount"`
	TotalRows int64                    `json:"totalRows"`
	Seed      int64                    `json:"seed"`
}

// HeavyRefArgs references a previously computed heavy-hitters sketch.
type HeavyRefArgs struct {
	HittersID core.Handle              `json:"hittersId"`
	Schema    []core.ColumnDescription `json:"schema"`
}

// HeavyListArgs filters rows matching a chosen subset of heavy hitters.
type HeavyListArgs struct {
	HittersID  core.Handle              `json:"hittersId"`
	Schema     []core.ColumnDescription `json:"schema"`
	RowIndices []int                    `json:"rowIndices"`
}

// EigenVectorArgs projects onto the principal components of a previously
// computed correlation matrix.
type EigenVectorArgs struct {
	CorrelationID  core.Handle `json:"id"`
	NumComponents  int         `json:"numComponents"`
	ProjectionName string      `json:"projectionName"`
}

// FilterEqualityArgs keeps (or drops) rows where a column equals a value.
type FilterEqualityArgs struct {
	Column       core.ColumnDescription `json:"column"`
	CompareValue string                 `json:"compareValue"`
	Complement   bool                   `json:"complement"`
}

// FilterComparisonArgs keeps rows satisfying a comparison on one column.
// Comparison is one of "==", "!=", "<", "<=", ">", ">=".
type FilterComparisonArgs struct {
	Column       core.ColumnDescription `json:"column"`
	CompareValue string                 `json:"compareValue"`
	Comparison   string                 `json:"comparison"`
}

// CorrelationArgs computes a correlation matrix or spectrum over columns.
type CorrelationArgs struct {
	ColumnNames []string `json:"columnNames"`
	TotalRows   int64    `json:"totalRows"`
	Seed        int64    `json:"seed"`
	ToSample    bool     `json:"toSample"`
}

// ProjectArgs restricts the table to a subset of its columns.
type ProjectArgs struct {
	Schema core.Schema `json:"schema"`
}

// JSCreateColumnArgs derives a new column by running a script server-side.
// The client forwards the script verbatim and never executes it.
type JSCreateColumnArgs struct {
	Function     string          `json:"jsFunction"`
	Schema       core.Schema     `json:"schema"`
	OutputColumn string          `json:"outputColumn"`
	OutputKind   core.ColumnKind `json:"outputKind"`
	RenameMap    []string        `json:"renameMap,omitempty"`
}

// KVCreateColumnArgs extracts a key's value from a key-value column.
type KVCreateColumnArgs struct {
	Key          string `json:"key"`
	InputColumn  string `json:"inputColumn"`
	OutputColumn string `json:"outputColumn"`
}

// RangeFilter bounds one column. String bounds are used for string-kinded
// columns, numeric bounds otherwise.
type RangeFilter struct {
	Column     core.ColumnDescription `json:"cd"`
	Min        float64                `json:"min"`
	Max        float64                `json:"max"`
	MinString  string                 `json:"minString,omitempty"`
	MaxString  string                 `json:"maxString,omitempty"`
	Complement bool                   `json:"complement"`
}

// Filter2DArgs bounds two columns at once (a rectangle selection).
type Filter2DArgs struct {
	First  RangeFilter `json:"first"`
	Second RangeFilter `json:"second"`
}

// HistogramArgs describes one bucketed axis.
type HistogramArgs struct {
	Column       core.ColumnDescription `json:"cd"`
	Seed         int64                  `json:"seed"`
	BucketCount  int                    `json:"bucketCount"`
	SamplingRate float64                `json:"samplingRate"`
}

// Histogram2DArgs describes two bucketed axes.
type Histogram2DArgs struct {
	First  HistogramArgs `json:"first"`
	Second HistogramArgs `json:"second"`
}

// Heatmap3DArgs describes three bucketed axes.
type Heatmap3DArgs struct {
	First  HistogramArgs `json:"first"`
	Second HistogramArgs `json:"second"`
	Third  HistogramArgs `json:"third"`
}

// DataRangeArgs requests the value range of one column, sampling at most
// StringsToSample distinct strings for string-kinded columns.
type DataRangeArgs struct {
	Column          core.ColumnDescription `json:"cd"`
	Seed            int64                  `json:"seed"`
	StringsToSample int                    `json:"stringsToSample"`
}

// SampledControlPointsArgs samples rows to seed an MDS projection.
type SampledControlPointsArgs struct {
	RowCount    int64    `json:"rowCount"`
	NumSamples  int      `json:"numSamples"`
	Seed        int64    `json:"seed"`
	ColumnNames []string `json:"columnNames"`
}

// CategoricalCentroidsArgs derives control points from the centroids of a
// categorical grouping.
type CategoricalCentroidsArgs struct {
	CategoricalColumnName string   `json:"categoricalColumnName"`
	NumericalColumnNames  []string `json:"numericalColumnNames"`
}

// MDSProjectionArgs runs multidimensional scaling over control points.
type MDSProjectionArgs struct {
	Seed int64 `json:"seed"`
}

// LampMapArgs maps the whole table through a projection anchored at
// user-adjusted control points.
type LampMapArgs struct {
	ControlPointsID core.Handle `json:"controlPointsId"`
	ColNames        []string    `json:"colNames"`
	ControlPoints   [][]float64 `json:"controlPoints"`
	NewColNames     []string    `json:"newColNames"`
}
