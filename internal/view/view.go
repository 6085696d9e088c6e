// Package view defines the typed, renderable projections of remote
// objects. The kind set is closed (core.Kind); serialization dispatch
// switches exhaustively over it. Views are immutable: a refresh replaces
// the page's view, it never mutates one in place.
package view

import (
	"github.com/skylens-io/skylens/pkg/core"
)

// View is what a page displays: a typed projection of one remote object.
// A view holds a non-owning reference (the handle) to server-side state
// whose lifetime it does not control.
type View interface {
	Kind() core.Kind
	Handle() core.Handle
	RowCount() int64
	Schema() core.Schema
}

// Base carries the fields every view variant shares.
type Base struct {
	DataHandle core.Handle
	Rows       int64
	DataSchema core.Schema
}

func (b Base) Handle() core.Handle { return b.DataHandle }
func (b Base) RowCount() int64     { return b.Rows }
func (b Base) Schema() core.Schema { return b.DataSchema }

// TrellisShape is the window geometry of a trellis (small-multiples) view.
type TrellisShape struct {
	XWindows    int `json:"xWindows" mapstructure:"xWindows"`
	YWindows    int `json:"yWindows" mapstructure:"yWindows"`
	WindowCount int `json:"windowCount" mapstructure:"windowCount"`
}

// Table shows rows in a chosen sort order.
type Table struct {
	Base
	Order       core.RecordOrder
	RowsDesired int
}

func (Table) Kind() core.Kind { return core.KindTable }

// Histogram is a one-dimensional bucketed frequency chart.
type Histogram struct {
	Base
	Column       core.ColumnDescription
	BucketCount  int
	SamplingRate float64
}

func (Histogram) Kind() core.Kind { return core.KindHistogram }

// Histogram2D stacks a second column's distribution inside each bucket.
type Histogram2D struct {
	Base
	XColumn      core.ColumnDescription
	YColumn      core.ColumnDescription
	XBucketCount int
	YBucketCount int
	SamplingRate float64
}

func (Histogram2D) Kind() core.Kind { return core.KindHistogram2D }

// Heatmap is a bucketed density grid over two columns.
type Heatmap struct {
	Base
	XColumn      core.ColumnDescription
	YColumn      core.ColumnDescription
	XBucketCount int
	YBucketCount int
	SamplingRate float64
}

func (Heatmap) Kind() core.Kind { return core.KindHeatmap }

// SchemaView lists the table's columns; it is the first view opened for a
// freshly loaded dataset.
type SchemaView struct {
	Base
}

func (SchemaView) Kind() core.Kind { return core.KindSchema }

// TrellisHistogram is a histogram split into small multiples by a
// group-by column.
type TrellisHistogram struct {
	Base
	Column        core.ColumnDescription
	GroupByColumn core.ColumnDescription
	BucketCount   int
	SamplingRate  float64
	Shape         TrellisShape
}

func (TrellisHistogram) Kind() core.Kind { return core.KindTrellisHistogram }

// Trellis2DHistogram is a 2D histogram split into small multiples.
type Trellis2DHistogram struct {
	Base
	XColumn       core.ColumnDescription
	YColumn       core.ColumnDescription
	GroupByColumn core.ColumnDescription
	XBucketCount  int
	YBucketCount  int
	SamplingRate  float64
	Shape         TrellisShape
}

func (Trellis2DHistogram) Kind() core.Kind { return core.KindTrellis2DHistogram }

// TrellisHeatmap is a heatmap split into small multiples.
type TrellisHeatmap struct {
	Base
	XColumn       core.ColumnDescription
	YColumn       core.ColumnDescription
	GroupByColumn core.ColumnDescription
	XBucketCount  int
	YBucketCount  int
	SamplingRate  float64
	Shape         TrellisShape
}

func (TrellisHeatmap) Kind() core.Kind { return core.KindTrellisHeatmap }

// HeavyHitters lists the most frequent values of a column set.
type HeavyHitters struct {
	Base
	Columns []core.ColumnDescription
	Percent float64
}

func (HeavyHitters) Kind() core.Kind { return core.KindHeavyHitters }

// Spectrum shows the eigenvalue spectrum of a correlation matrix.
type Spectrum struct {
	Base
	ColumnNames []string
}

func (Spectrum) Kind() core.Kind { return core.KindSpectrum }

// Load is the transient view shown while a dataset is loading. It is
// serialized for completeness but never reconstructed.
type Load struct {
	Base
	Description string
}

func (Load) Kind() core.Kind { return core.KindLoad }
