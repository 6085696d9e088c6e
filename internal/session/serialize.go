package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/skylens-io/skylens/internal/view"
	"github.com/skylens-io/skylens/pkg/core"
)

// SavedSessionKind tags a persisted session document. The format is
// stable: previously saved files must keep reconstructing, and unknown
// view kinds are rejected, never guessed.
const SavedSessionKind = "Saved dataset"

// ErrUnknownViewKind rejects a serialized view whose tag is outside the
// known kind set.
var ErrUnknownViewKind = errors.New("unknown view kind")

// requiredFields must be present in every serialized view record; only
// the causal-parent field may legitimately be absent.
var requiredFields = []string{"pageId", "remoteObjectId", "rowCount", "title", "viewKind"}

// SerializedSession is the persisted form of one session.
type SerializedSession struct {
	Kind           string      `json:"kind"`
	RemoteObjectID core.Handle `json:"remoteObjectId"`
	Views          []any       `json:"views"`
}

// ViewRecord carries the base fields shared by every serialized view.
type ViewRecord struct {
	ViewKind       string      `json:"viewKind" mapstructure:"viewKind"`
	PageID         int         `json:"pageId" mapstructure:"pageId"`
	SourcePageID   int         `json:"sourcePageId,omitempty" mapstructure:"sourcePageId"`
	Title          string      `json:"title" mapstructure:"title"`
	RemoteObjectID string      `json:"remoteObjectId" mapstructure:"remoteObjectId"`
	RowCount       int64       `json:"rowCount" mapstructure:"rowCount"`
	Schema         core.Schema `json:"schema" mapstructure:"schema"`
}

func baseRecord(p *Page, v view.View) ViewRecord {
	return ViewRecord{
		ViewKind:       v.Kind().String(),
		PageID:         p.ID,
		SourcePageID:   p.SourceID,
		Title:          p.Title,
		RemoteObjectID: v.Handle().String(),
		RowCount:       v.RowCount(),
		Schema:         v.Schema(),
	}
}

func (r ViewRecord) base(h core.Handle) view.Base {
	return view.Base{DataHandle: h, Rows: r.RowCount, DataSchema: r.Schema}
}

type tableRecord struct {
	ViewRecord  `mapstructure:",squash"`
	Order       core.RecordOrder `json:"order" mapstructure:"order"`
	RowsDesired int              `json:"tableRowsDesired" mapstructure:"tableRowsDesired"`
}

type histogramRecord struct {
	ViewRecord   `mapstructure:",squash"`
	Column       core.ColumnDescription `json:"columnDescription" mapstructure:"columnDescription"`
	BucketCount  int                    `json:"bucketCount" mapstructure:"bucketCount"`
	SamplingRate float64                `json:"samplingRate" mapstructure:"samplingRate"`
}

type histogram2DRecord struct {
	ViewRecord   `mapstructure:",squash"`
	XColumn      core.ColumnDescription `json:"xColumn" mapstructure:"xColumn"`
	YColumn      core.ColumnDescription `json:"yColumn" mapstructure:"yColumn"`
	XBucketCount int                    `json:"xBucketCount" mapstructure:"xBucketCount"`
	YBucketCount int                    `json:"yBucketCount" mapstructure:"yBucketCount"`
	SamplingRate float64                `json:"samplingRate" mapstructure:"samplingRate"`
}

type schemaRecord struct {
	ViewRecord `mapstructure:",squash"`
}

type trellisHistogramRecord struct {
	ViewRecord    `mapstructure:",squash"`
	Column        core.ColumnDescription `json:"columnDescription" mapstructure:"columnDescription"`
	GroupByColumn core.ColumnDescription `json:"groupByColumn" mapstructure:"groupByColumn"`
	BucketCount   int                    `json:"bucketCount" mapstructure:"bucketCount"`
	SamplingRate  float64                `json:"samplingRate" mapstructure:"samplingRate"`
	Shape         view.TrellisShape      `json:"trellisShape" mapstructure:"trellisShape"`
}

type trellis2DRecord struct {
	ViewRecord    `mapstructure:",squash"`
	XColumn       core.ColumnDescription `json:"xColumn" mapstructure:"xColumn"`
	YColumn       core.ColumnDescription `json:"yColumn" mapstructure:"yColumn"`
	GroupByColumn core.ColumnDescription `json:"groupByColumn" mapstructure:"groupByColumn"`
	XBucketCount  int                    `json:"xBucketCount" mapstructure:"xBucketCount"`
	YBucketCount  int                    `json:"yBucketCount" mapstructure:"yBucketCount"`
	SamplingRate  float64                `json:"samplingRate" mapstructure:"samplingRate"`
	Shape         view.TrellisShape      `json:"trellisShape" mapstructure:"trellisShape"`
}

type heavyHittersRecord struct {
	ViewRecord `mapstructure:",squash"`
	Columns    []core.ColumnDescription `json:"columns" mapstructure:"columns"`
	Percent    float64                  `json:"percent" mapstructure:"percent"`
}

type spectrumRecord struct {
	ViewRecord  `mapstructure:",squash"`
	ColumnNames []string `json:"columnNames" mapstructure:"columnNames"`
}

type loadRecord struct {
	ViewRecord  `mapstructure:",squash"`
	Description string `json:"description" mapstructure:"description"`
}

// Serialize snapshots the session: pages in current order, one tagged
// record per page holding a view; view-less pages are skipped.
func (s *Session) Serialize() *SerializedSession {
	out := &SerializedSession{
		Kind:           SavedSessionKind,
		RemoteObjectID: s.handle,
		Views:          []any{},
	}
	for _, p := range s.Pages() {
		v := p.View()
		if v == nil {
			continue
		}
		out.Views = append(out.Views, recordFor(p, v))
	}
	return out
}

// recordFor emits the tagged record for one view. The switch is
// exhaustive over the closed kind set; adding a view kind extends it here
// and in applyRecord.
func recordFor(p *Page, v view.View) any {
	switch t := v.(type) {
	case view.Table:
		return tableRecord{ViewRecord: baseRecord(p, v), Order: t.Order, RowsDesired: t.RowsDesired}
	case view.Histogram:
		return histogramRecord{ViewRecord: baseRecord(p, v), Column: t.Column, BucketCount: t.BucketCount, SamplingRate: t.SamplingRate}
	case view.Histogram2D:
		return histogram2DRecord{ViewRecord: baseRecord(p, v), XColumn: t.XColumn, YColumn: t.YColumn,
			XBucketCount: t.XBucketCount, YBucketCount: t.YBucketCount, SamplingRate: t.SamplingRate}
	case view.Heatmap:
		return histogram2DRecord{ViewRecord: baseRecord(p, v), XColumn: t.XColumn, YColumn: t.YColumn,
			XBucketCount: t.XBucketCount, YBucketCount: t.YBucketCount, SamplingRate: t.SamplingRate}
	case view.SchemaView:
		return schemaRecord{ViewRecord: baseRecord(p, v)}
	case view.TrellisHistogram:
		return trellisHistogramRecord{ViewRecord: baseRecord(p, v), Column: t.Column, GroupByColumn: t.GroupByColumn,
			BucketCount: t.BucketCount, SamplingRate: t.SamplingRate, Shape: t.Shape}
	case view.Trellis2DHistogram:
		return trellis2DRecord{ViewRecord: baseRecord(p, v), XColumn: t.XColumn, YColumn: t.YColumn,
			GroupByColumn: t.GroupByColumn, XBucketCount: t.XBucketCount, YBucketCount: t.YBucketCount,
			SamplingRate: t.SamplingRate, Shape: t.Shape}
	case view.TrellisHeatmap:
		return trellis2DRecord{ViewRecord: baseRecord(p, v), XColumn: t.XColumn, YColumn: t.YColumn,
			GroupByColumn: t.GroupByColumn, XBucketCount: t.XBucketCount, YBucketCount: t.YBucketCount,
			SamplingRate: t.SamplingRate, Shape: t.Shape}
	case view.HeavyHitters:
		return heavyHittersRecord{ViewRecord: baseRecord(p, v), Columns: t.Columns, Percent: t.Percent}
	case view.Spectrum:
		return spectrumRecord{ViewRecord: baseRecord(p, v), ColumnNames: t.ColumnNames}
	case view.Load:
		return loadRecord{ViewRecord: baseRecord(p, v), Description: t.Description}
	default:
		// Unreachable while the kind set stays closed.
		panic(fmt.Sprintf("unhandled view type %T", v))
	}
}

// Save writes the serialized session to path as UTF-8 JSON text and, when
// a history store is configured, records the snapshot there. A history
// failure does not undo a successful write.
func (s *Session) Save(path string) error {
	serialized := s.Serialize()
	doc, err := json.MarshalIndent(serialized, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing session: %w", err)
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if s.history != nil {
		if _, err := s.history.RecordSnapshot(s.handle, path, len(serialized.Views)); err != nil {
			s.logger.Warn("failed to record snapshot in history", "path", path, "err", err)
		}
	}
	return nil
}

// rawSession is the shape Reconstruct parses before validating.
type rawSession struct {
	Kind           string           `json:"kind"`
	RemoteObjectID core.Handle      `json:"remoteObjectId"`
	Views          []map[string]any `json:"views"`
}

// decode maps a raw record into a typed one, tolerating JSON's
// float-typed numbers.
func decode(raw map[string]any, into any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           into,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// validateRecord checks the mandatory base fields of one raw record and
// returns its kind. sourcePageId may legitimately be absent.
func validateRecord(idx int, raw map[string]any) (core.Kind, error) {
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return "", fmt.Errorf("view %d: missing field %q", idx, field)
		}
	}
	tag, _ := raw["viewKind"].(string)
	kind, err := core.ParseKind(tag)
	if err != nil {
		return "", fmt.Errorf("view %d: %w: %q", idx, ErrUnknownViewKind, tag)
	}
	return kind, nil
}

// applyRecord decodes one validated record into a view. Load records
// return nil: they are serialized for completeness but never
// reconstructed.
func applyRecord(kind core.Kind, raw map[string]any) (ViewRecord, view.View, error) {
	build := func(rec any, make func() view.View) (ViewRecord, view.View, error) {
		if err := decode(raw, rec); err != nil {
			return ViewRecord{}, nil, err
		}
		return *recBase(rec), make(), nil
	}

	switch kind {
	case core.KindTable:
		var r tableRecord
		return build(&r, func() view.View {
			return view.Table{Base: r.base(core.Handle(r.RemoteObjectID)), Order: r.Order, RowsDesired: r.RowsDesired}
		})
	case core.KindHistogram:
		var r histogramRecord
		return build(&r, func() view.View {
			return view.Histogram{Base: r.base(core.Handle(r.RemoteObjectID)), Column: r.Column,
				BucketCount: r.BucketCount, SamplingRate: r.SamplingRate}
		})
	case core.KindHistogram2D:
		var r histogram2DRecord
		return build(&r, func() view.View {
			return view.Histogram2D{Base: r.base(core.Handle(r.RemoteObjectID)), XColumn: r.XColumn, YColumn: r.YColumn,
				XBucketCount: r.XBucketCount, YBucketCount: r.YBucketCount, SamplingRate: r.SamplingRate}
		})
	case core.KindHeatmap:
		var r histogram2DRecord
		return build(&r, func() view.View {
			return view.Heatmap{Base: r.base(core.Handle(r.RemoteObjectID)), XColumn: r.XColumn, YColumn: r.YColumn,
				XBucketCount: r.XBucketCount, YBucketCount: r.YBucketCount, SamplingRate: r.SamplingRate}
		})
	case core.KindSchema:
		var r schemaRecord
		return build(&r, func() view.View {
			return view.SchemaView{Base: r.base(core.Handle(r.RemoteObjectID))}
		})
	case core.KindTrellisHistogram:
		var r trellisHistogramRecord
		return build(&r, func() view.View {
			return view.TrellisHistogram{Base: r.base(core.Handle(r.RemoteObjectID)), Column: r.Column,
				GroupByColumn: r.GroupByColumn, BucketCount: r.BucketCount, SamplingRate: r.SamplingRate, Shape: r.Shape}
		})
	case core.KindTrellis2DHistogram:
		var r trellis2DRecord
		return build(&r, func() view.View {
			return view.Trellis2DHistogram{Base: r.base(core.Handle(r.RemoteObjectID)), XColumn: r.XColumn,
				YColumn: r.YColumn, GroupByColumn: r.GroupByColumn, XBucketCount: r.XBucketCount,
				YBucketCount: r.YBucketCount, SamplingRate: r.SamplingRate, Shape: r.Shape}
		})
	case core.KindTrellisHeatmap:
		var r trellis2DRecord
		return build(&r, func() view.View {
			return view.TrellisHeatmap{Base: r.base(core.Handle(r.RemoteObjectID)), XColumn: r.XColumn,
				YColumn: r.YColumn, GroupByColumn: r.GroupByColumn, XBucketCount: r.XBucketCount,
				YBucketCount: r.YBucketCount, SamplingRate: r.SamplingRate, Shape: r.Shape}
		})
	case core.KindHeavyHitters:
		var r heavyHittersRecord
		return build(&r, func() view.View {
			return view.HeavyHitters{Base: r.base(core.Handle(r.RemoteObjectID)), Columns: r.Columns, Percent: r.Percent}
		})
	case core.KindSpectrum:
		var r spectrumRecord
		return build(&r, func() view.View {
			return view.Spectrum{Base: r.base(core.Handle(r.RemoteObjectID)), ColumnNames: r.ColumnNames}
		})
	case core.KindLoad:
		var r loadRecord
		if err := decode(raw, &r); err != nil {
			return ViewRecord{}, nil, err
		}
		return r.ViewRecord, nil, nil
	default:
		return ViewRecord{}, nil, fmt.Errorf("%w: %q", ErrUnknownViewKind, kind)
	}
}

// recBase extracts the embedded ViewRecord from a typed record pointer.
func recBase(rec any) *ViewRecord {
	switch r := rec.(type) {
	case *tableRecord:
		return &r.ViewRecord
	case *histogramRecord:
		return &r.ViewRecord
	case *histogram2DRecord:
		return &r.ViewRecord
	case *schemaRecord:
		return &r.ViewRecord
	case *trellisHistogramRecord:
		return &r.ViewRecord
	case *trellis2DRecord:
		return &r.ViewRecord
	case *heavyHittersRecord:
		return &r.ViewRecord
	case *spectrumRecord:
		return &r.ViewRecord
	case *loadRecord:
		return &r.ViewRecord
	default:
		panic(fmt.Sprintf("unhandled record type %T", rec))
	}
}

// Reconstruct replays a saved session into this one. It is two-phase:
// every record is validated and decoded before any page is created, so a
// malformed entry fails the whole load and leaves the session unchanged.
// Load records are skipped; unknown kinds and missing base fields are
// errors.
func (s *Session) Reconstruct(data []byte) error {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing saved session: %w", err)
	}
	if raw.Kind != SavedSessionKind {
		return fmt.Errorf("not a saved session document (kind %q)", raw.Kind)
	}
	if raw.Views == nil {
		return fmt.Errorf("saved session has no views list")
	}

	type pending struct {
		rec ViewRecord
		v   view.View
	}

	// Phase one: validate and decode everything.
	seen := make(map[int]bool)
	var apply []pending
	for i, entry := range raw.Views {
		kind, err := validateRecord(i, entry)
		if err != nil {
			return err
		}
		rec, v, err := applyRecord(kind, entry)
		if err != nil {
			return fmt.Errorf("view %d: %w", i, err)
		}
		if seen[rec.PageID] || s.containsID(rec.PageID) {
			return fmt.Errorf("view %d: duplicate page id %d", i, rec.PageID)
		}
		seen[rec.PageID] = true
		if v == nil {
			continue // Load views are never reconstructed
		}
		apply = append(apply, pending{rec: rec, v: v})
	}

	// Phase two: attach pages in order.
	s.mu.Lock()
	for _, p := range apply {
		page := &Page{
			ID:       p.rec.PageID,
			SourceID: p.rec.SourcePageID,
			Title:    p.rec.Title,
		}
		page.SetView(p.v)
		s.pages = append(s.pages, page)
		if p.rec.PageID >= s.pageCounter {
			s.pageCounter = p.rec.PageID + 1
		}
	}
	s.mu.Unlock()
	s.notifier.Broadcast()
	return nil
}
