package remote

import (
	"fmt"

	"github.com/skylens-io/skylens/pkg/core"
)

// HeavyHittersThreshold is the percentage below which the exact-counting
// heavy-hitters operation is used; at or above it the server samples.
const HeavyHittersThreshold = 1.0

// TableProxy builds requests against one remote object. It is stateless
// except for the handle it wraps and the seed source it draws from;
// builders validate and shape arguments but perform no I/O.
type TableProxy struct {
	handle core.Handle
	seed   *Seed
}

// NewTableProxy wraps a remote handle. A receiver that obtains a new
// handle from a completed operation wraps it the same way to chain
// further operations.
func NewTableProxy(handle core.Handle, seed *Seed) *TableProxy {
	return &TableProxy{handle: handle, seed: seed}
}

// Handle returns the remote object this proxy is bound to.
func (p *TableProxy) Handle() core.Handle {
	return p.handle
}

func (p *TableProxy) req(operation string, args any, resultKind string) *Request {
	return &Request{
		Target:     p.handle,
		Operation:  operation,
		Arguments:  args,
		ResultKind: resultKind,
	}
}

// Zip pairs this object with another; the result handle represents the
// pair and is the target of a subsequent setOperation.
func (p *TableProxy) Zip(other core.Handle) *Request {
	return p.req("zip", ZipArgs{Other: other}, "objectRef")
}

// SetOperation applies a set-style operator to a paired object produced
// by Zip.
func (p *TableProxy) SetOperation(op core.SetOperation) *Request {
	return p.req("setOperation", SetOperationArgs{Operation: op}, "objectRef")
}

// GetSchema fetches the table's schema and row count.
func (p *TableProxy) GetSchema() *Request {
	return p.req("getSchema", struct{}{}, "schemaSummary")
}

// GetNextK fetches the next screenful of rows after firstRow in the given
// order.
func (p *TableProxy) GetNextK(order core.RecordOrder, firstRow []any, rowsOnScreen int) *Request {
	return p.req("getNextK", NextKArgs{
		Order:        order,
		FirstRow:     firstRow,
		RowsOnScreen: rowsOnScreen,
	}, "nextKList")
}

// Find searches for a string below topRow in the given order.
func (p *TableProxy) Find(args FindArgs) *Request {
	return p.req("find", args, "findResult")
}

// Quantile locates the row at the given relative position in sorted order.
func (p *TableProxy) Quantile(precision int, tableSize int64, order core.RecordOrder, position float64) *Request {
	return p.req("quantile", QuantileArgs{
		Precision: precision,
		TableSize: tableSize,
		Order:     order,
		Position:  position,
		Seed:      p.seed.Next(),
	}, "row")
}

// Contains asks whether a row with the given values exists.
func (p *TableProxy) Contains(order core.RecordOrder, row []any) *Request {
	return p.req("contains", ContainsArgs{Order: order, Row: row}, "bool")
}

// GetLogFragment fetches the log lines surrounding one row.
func (p *TableProxy) GetLogFragment(schema core.Schema, row []any, rowSchema core.Schema, count int) *Request {
	return p.req("getLogFragment", LogFragmentArgs{
		Schema:    schema,
		Row:       row,
		RowSchema: rowSchema,
		Count:     count,
	}, "logFragment")
}

// HLogLog estimates the distinct-value count of one column.
func (p *TableProxy) HLogLog(columnName string) *Request {
	return p.req("hLogLog", HLogLogArgs{
		ColumnName: columnName,
		Seed:       p.seed.Next(),
	}, "count")
}

// HeavyHitters finds the values occurring in more than percent of rows.
// Below HeavyHittersThreshold the exact-counting operation is used;
// otherwise the sampling one.
func (p *TableProxy) HeavyHitters(columns []core.ColumnDescription, percent float64, totalRows int64) *Request {
	operation := "heavyHittersMG"
	if percent >= HeavyHittersThreshold {
		operation = "heavyHittersSampling"
	}
	return p.req(operation, HeavyHittersArgs{
		Columns:   columns,
		Amount:    percent,
		TotalRows: totalRows,
		Seed:      p.seed.Next(),
	}, "heavyHitters")
}

// CheckHeavy re-checks candidate heavy hitters against the full data.
func (p *TableProxy) CheckHeavy(hitters core.Handle, schema []core.ColumnDescription) *Request {
	return p.req("checkHeavy", HeavyRefArgs{HittersID: hitters, Schema: schema}, "heavyHitters")
}

// FilterHeavy keeps the rows matching a heavy-hitters sketch.
func (p *TableProxy) FilterHeavy(hitters core.Handle, schema []core.ColumnDescription) *Request {
	return p.req("filterHeavy", HeavyRefArgs{HittersID: hitters, Schema: schema}, "objectRef")
}

// FilterListHeavy keeps the rows matching a chosen subset of heavy hitters.
func (p *TableProxy) FilterListHeavy(hitters core.Handle, schema []core.ColumnDescription, rowIndices []int) *Request {
	return p.req("filterListHeavy", HeavyListArgs{
		HittersID:  hitters,
		Schema:     schema,
		RowIndices: rowIndices,
	}, "objectRef")
}

// ProjectToEigenVectors projects onto the top principal components of a
// previously computed correlation matrix.
func (p *TableProxy) ProjectToEigenVectors(correlation core.Handle, numComponents int, projectionName string) *Request {
	return p.req("projectToEigenVectors", EigenVectorArgs{
		CorrelationID:  correlation,
		NumComponents:  numComponents,
		ProjectionName: projectionName,
	}, "objectRef")
}

// FilterEquality keeps (or, with complement, drops) rows where the column
// equals the value.
func (p *TableProxy) FilterEquality(column core.ColumnDescription, compareValue string, complement bool) *Request {
	return p.req("filterEquality", FilterEqualityArgs{
		Column:       column,
		CompareValue: compareValue,
		Complement:   complement,
	}, "objectRef")
}

// FilterComparison keeps rows satisfying a comparison against a value.
func (p *TableProxy) FilterComparison(column core.ColumnDescription, compareValue, comparison string) *Request {
	return p.req("filterComparison", FilterComparisonArgs{
		Column:       column,
		CompareValue: compareValue,
		Comparison:   comparison,
	}, "objectRef")
}

// CorrelationMatrix computes pairwise correlations over numeric columns.
func (p *TableProxy) CorrelationMatrix(columnNames []string, totalRows int64, toSample bool) *Request {
	return p.req("correlationMatrix", CorrelationArgs{
		ColumnNames: columnNames,
		TotalRows:   totalRows,
		Seed:        p.seed.Next(),
		ToSample:    toSample,
	}, "correlationMatrix")
}

// Project restricts the table to a subset of its columns.
func (p *TableProxy) Project(schema core.Schema) *Request {
	return p.req("project", ProjectArgs{Schema: schema}, "objectRef")
}

// Spectrum computes the eigenvalue spectrum of the correlation matrix of
// the named columns.
func (p *TableProxy) Spectrum(columnNames []string, totalRows int64, toSample bool) *Request {
	return p.req("spectrum", CorrelationArgs{
		ColumnNames: columnNames,
		TotalRows:   totalRows,
		Seed:        p.seed.Next(),
		ToSample:    toSample,
	}, "eigenSpectrum")
}

// JSCreateColumn derives a new column by running a script server-side.
func (p *TableProxy) JSCreateColumn(args JSCreateColumnArgs) *Request {
	return p.req("jsCreateColumn", args, "objectRef")
}

// KVCreateColumn extracts a key's value from a key-value column into a new
// column.
func (p *TableProxy) KVCreateColumn(key, inputColumn, outputColumn string) *Request {
	return p.req("kvCreateColumn", KVCreateColumnArgs{
		Key:          key,
		InputColumn:  inputColumn,
		OutputColumn: outputColumn,
	}, "objectRef")
}

// FilterRange keeps rows whose column value lies inside the range.
func (p *TableProxy) FilterRange(filter RangeFilter) *Request {
	return p.req("filterRange", filter, "objectRef")
}

// Filter2DRange keeps rows inside a rectangle over two columns.
func (p *TableProxy) Filter2DRange(first, second RangeFilter) *Request {
	return p.req("filter2DRange", Filter2DArgs{First: first, Second: second}, "objectRef")
}

// histogramArgs shapes one bucketed axis, drawing a fresh seed.
func (p *TableProxy) histogramArgs(column core.ColumnDescription, bucketCount int, samplingRate float64) HistogramArgs {
	return HistogramArgs{
		Column:       column,
		Seed:         p.seed.Next(),
		BucketCount:  bucketCount,
		SamplingRate: samplingRate,
	}
}

// Histogram requests a one-dimensional histogram. The resolution vector
// must have exactly one element (the bucket count).
func (p *TableProxy) Histogram(column core.ColumnDescription, resolution []int, samplingRate float64) (*Request, error) {
	if len(resolution) != 1 {
		return nil, fmt.Errorf("histogram needs 1 resolution entry for 1 column, got %d", len(resolution))
	}
	return p.req("histogram", p.histogramArgs(column, resolution[0], samplingRate), "histogramBuckets"), nil
}

// Histogram2D requests a two-dimensional histogram over two columns.
func (p *TableProxy) Histogram2D(columns [2]core.ColumnDescription, resolution []int, samplingRate float64) (*Request, error) {
	if len(resolution) != 2 {
		return nil, fmt.Errorf("histogram2D needs 2 resolution entries for 2 columns, got %d", len(resolution))
	}
	return p.req("histogram2D", Histogram2DArgs{
		First:  p.histogramArgs(columns[0], resolution[0], samplingRate),
		Second: p.histogramArgs(columns[1], resolution[1], samplingRate),
	}, "histogramBuckets2D"), nil
}

// Heatmap requests a bucketed density grid over two columns.
func (p *TableProxy) Heatmap(columns [2]core.ColumnDescription, resolution []int, samplingRate float64) (*Request, error) {
	if len(resolution) != 2 {
		return nil, fmt.Errorf("heatmap needs 2 resolution entries for 2 columns, got %d", len(resolution))
	}
	return p.req("heatmap", Histogram2DArgs{
		First:  p.histogramArgs(columns[0], resolution[0], samplingRate),
		Second: p.histogramArgs(columns[1], resolution[1], samplingRate),
	}, "heatmapData"), nil
}

// Heatmap3D requests a density grid over three columns; the third axis
// becomes the trellis grouping.
func (p *TableProxy) Heatmap3D(columns [3]core.ColumnDescription, resolution []int, samplingRate float64) (*Request, error) {
	if len(resolution) != 3 {
		return nil, fmt.Errorf("heatmap3D needs 3 resolution entries for 3 columns, got %d", len(resolution))
	}
	return p.req("heatmap3D", Heatmap3DArgs{
		First:  p.histogramArgs(columns[0], resolution[0], samplingRate),
		Second: p.histogramArgs(columns[1], resolution[1], samplingRate),
		Third:  p.histogramArgs(columns[2], resolution[2], samplingRate),
	}, "heatmap3DData"), nil
}

// DataRanges requests the value ranges of one, two, or three columns; the
// operation name is chosen by the column count.
func (p *TableProxy) DataRanges(columns []core.ColumnDescription, stringsToSample int) (*Request, error) {
	var operation string
	switch len(columns) {
	case 1:
		operation = "getDataRanges1D"
	case 2:
		operation = "getDataRanges2D"
	case 3:
		operation = "getDataRanges3D"
	default:
		return nil, fmt.Errorf("data ranges support 1 to 3 columns, got %d", len(columns))
	}
	args := make([]DataRangeArgs, len(columns))
	for i, cd := range columns {
		args[i] = DataRangeArgs{
			Column:          cd,
			Seed:            p.seed.Next(),
			StringsToSample: stringsToSample,
		}
	}
	return p.req(operation, args, "dataRanges"), nil
}

// SampledControlPoints samples rows to seed an MDS projection.
func (p *TableProxy) SampledControlPoints(rowCount int64, numSamples int, columnNames []string) *Request {
	return p.req("sampledControlPoints", SampledControlPointsArgs{
		RowCount:    rowCount,
		NumSamples:  numSamples,
		Seed:        p.seed.Next(),
		ColumnNames: columnNames,
	}, "objectRef")
}

// CategoricalCentroidsControlPoints derives control points from the
// centroids of a categorical grouping.
func (p *TableProxy) CategoricalCentroidsControlPoints(categoricalColumn string, numericalColumns []string) *Request {
	return p.req("categoricalCentroidsControlPoints", CategoricalCentroidsArgs{
		CategoricalColumnName: categoricalColumn,
		NumericalColumnNames:  numericalColumns,
	}, "objectRef")
}

// MakeMDSProjection runs multidimensional scaling over control points.
func (p *TableProxy) MakeMDSProjection() *Request {
	return p.req("makeMDSProjection", MDSProjectionArgs{Seed: p.seed.Next()}, "pointSet")
}

// LampMap maps the whole table through a projection anchored at
// user-adjusted control points.
func (p *TableProxy) LampMap(args LampMapArgs) *Request {
	return p.req("lampMap", args, "objectRef")
}
