package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/skylens-io/skylens/internal/history"
	"github.com/skylens-io/skylens/internal/view"
	"github.com/skylens-io/skylens/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() core.Schema {
	return core.Schema{
		{Name: "origin", Kind: core.ColumnString},
		{Name: "delay", Kind: core.ColumnDouble},
	}
}

func baseFor(h core.Handle, rows int64) view.Base {
	return view.Base{DataHandle: h, Rows: rows, DataSchema: testSchema()}
}

// populatedSession builds one page per reconstructible view kind plus a
// Load page.
func populatedSession(t *testing.T) *Session {
	t.Helper()
	s, _ := newTestSession(t)
	schema := testSchema()

	views := []view.View{
		view.SchemaView{Base: baseFor("h-schema", 100)},
		view.Table{Base: baseFor("h-table", 100),
			Order:       core.RecordOrder{{Column: schema[0], Ascending: true}},
			RowsDesired: 20},
		view.Histogram{Base: baseFor("h-hist", 100), Column: schema[1], BucketCount: 40, SamplingRate: 0.5},
		view.Histogram2D{Base: baseFor("h-hist2d", 100), XColumn: schema[0], YColumn: schema[1],
			XBucketCount: 25, YBucketCount: 10, SamplingRate: 1},
		view.Heatmap{Base: baseFor("h-heat", 100), XColumn: schema[0], YColumn: schema[1],
			XBucketCount: 200, YBucketCount: 100, SamplingRate: 0.1},
		view.TrellisHistogram{Base: baseFor("h-thist", 100), Column: schema[1], GroupByColumn: schema[0],
			BucketCount: 30, SamplingRate: 1, Shape: view.TrellisShape{XWindows: 3, YWindows: 2, WindowCount: 6}},
		view.Trellis2DHistogram{Base: baseFor("h-t2d", 100), XColumn: schema[0], YColumn: schema[1],
			GroupByColumn: schema[0], XBucketCount: 10, YBucketCount: 5, SamplingRate: 1,
			Shape: view.TrellisShape{XWindows: 2, YWindows: 2, WindowCount: 4}},
		view.TrellisHeatmap{Base: baseFor("h-theat", 100), XColumn: schema[0], YColumn: schema[1],
			GroupByColumn: schema[0], XBucketCount: 40, YBucketCount: 40, SamplingRate: 0.2,
			Shape: view.TrellisShape{XWindows: 4, YWindows: 1, WindowCount: 4}},
		view.HeavyHitters{Base: baseFor("h-heavy", 100), Columns: schema, Percent: 0.5},
		view.Spectrum{Base: baseFor("h-spec", 100), ColumnNames: []string{"origin", "delay"}},
		view.Load{Base: baseFor("h-load", 0), Description: "loading flights.csv"},
	}

	var prev *Page
	for i, v := range views {
		p, err := s.NewPage(v.Kind().String(), prev)
		require.NoError(t, err, "view %d", i)
		p.SetView(v)
		prev = p
	}
	return s
}

func TestSerialize_SkipsViewlessPages(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.NewPage("empty", nil)
	require.NoError(t, err)

	doc := s.Serialize()
	assert.Equal(t, SavedSessionKind, doc.Kind)
	assert.Equal(t, core.Handle("ds-root"), doc.RemoteObjectID)
	assert.Empty(t, doc.Views)
}

func TestSerialize_RoundTrip(t *testing.T) {
	s := populatedSession(t)
	data, err := json.Marshal(s.Serialize())
	require.NoError(t, err)

	restored, _ := newTestSession(t)
	require.NoError(t, restored.Reconstruct(data))

	original := s.Pages()
	pages := restored.Pages()
	// The Load page is serialized but never reconstructed.
	require.Len(t, pages, len(original)-1)

	byID := make(map[int]*Page)
	for _, p := range pages {
		byID[p.ID] = p
	}

	for _, op := range original {
		ov := op.View()
		if ov.Kind() == core.KindLoad {
			_, found := byID[op.ID]
			assert.False(t, found, "Load pages are not reconstructed")
			continue
		}
		rp, found := byID[op.ID]
		require.True(t, found, "page %d missing after round trip", op.ID)
		assert.Equal(t, op.SourceID, rp.SourceID)
		assert.Equal(t, op.Title, rp.Title)

		rv := rp.View()
		require.NotNil(t, rv)
		assert.Equal(t, ov.Kind(), rv.Kind())
		assert.Equal(t, ov.Handle(), rv.Handle())
		assert.Equal(t, ov.RowCount(), rv.RowCount())
		assert.Equal(t, ov.Schema(), rv.Schema())
		// Kind-specific shape parameters survive intact.
		assert.Equal(t, ov, rv)
	}

	// Fresh ids continue above the restored ones.
	next, err := restored.NewPage("next", nil)
	require.NoError(t, err)
	for _, p := range pages {
		assert.Greater(t, next.ID, p.ID)
	}
}

func TestReconstruct_Failures(t *testing.T) {
	valid := `{
		"viewKind": "Histogram", "pageId": 1, "title": "h",
		"remoteObjectId": "obj-1", "rowCount": 10,
		"schema": [{"name":"delay","kind":"Double"}],
		"columnDescription": {"name":"delay","kind":"Double"},
		"bucketCount": 10, "samplingRate": 1
	}`

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `nope`},
		{"wrong document kind", `{"kind":"Something else","remoteObjectId":"r","views":[]}`},
		{"missing views", `{"kind":"Saved dataset","remoteObjectId":"r"}`},
		{"views not a sequence", `{"kind":"Saved dataset","remoteObjectId":"r","views":42}`},
		{"missing pageId", `{"kind":"Saved dataset","remoteObjectId":"r","views":[
			{"viewKind":"Schema","title":"t","remoteObjectId":"o","rowCount":1,"schema":[]}]}`},
		{"missing remoteObjectId", `{"kind":"Saved dataset","remoteObjectId":"r","views":[
			{"viewKind":"Schema","pageId":1,"title":"t","rowCount":1,"schema":[]}]}`},
		{"missing rowCount", `{"kind":"Saved dataset","remoteObjectId":"r","views":[
			{"viewKind":"Schema","pageId":1,"title":"t","remoteObjectId":"o","schema":[]}]}`},
		{"missing title", `{"kind":"Saved dataset","remoteObjectId":"r","views":[
			{"viewKind":"Schema","pageId":1,"remoteObjectId":"o","rowCount":1,"schema":[]}]}`},
		{"missing viewKind", `{"kind":"Saved dataset","remoteObjectId":"r","views":[
			{"pageId":1,"title":"t","remoteObjectId":"o","rowCount":1,"schema":[]}]}`},
		{"unknown viewKind", `{"kind":"Saved dataset","remoteObjectId":"r","views":[
			{"viewKind":"Sparkline","pageId":1,"title":"t","remoteObjectId":"o","rowCount":1,"schema":[]}]}`},
		{"duplicate pageId", `{"kind":"Saved dataset","remoteObjectId":"r","views":[` +
			valid + `,` + valid + `]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t)
			err := s.Reconstruct([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestReconstruct_AllOrNothing(t *testing.T) {
	// A valid record followed by a malformed one: the whole load fails
	// and no page from the earlier record remains attached.
	doc := `{"kind":"Saved dataset","remoteObjectId":"r","views":[
		{"viewKind":"Schema","pageId":1,"title":"ok","remoteObjectId":"o","rowCount":1,"schema":[]},
		{"viewKind":"Sparkline","pageId":2,"title":"bad","remoteObjectId":"o","rowCount":1,"schema":[]}
	]}`

	s, _ := newTestSession(t)
	err := s.Reconstruct([]byte(doc))
	require.ErrorIs(t, err, ErrUnknownViewKind)
	assert.Empty(t, s.Pages(), "a failed load attaches nothing")
}

func TestReconstruct_SourcePageIDMayBeAbsent(t *testing.T) {
	doc := `{"kind":"Saved dataset","remoteObjectId":"r","views":[
		{"viewKind":"Schema","pageId":3,"title":"root","remoteObjectId":"o","rowCount":1,"schema":[]},
		{"viewKind":"Schema","pageId":4,"sourcePageId":3,"title":"child","remoteObjectId":"o","rowCount":1,"schema":[]}
	]}`

	s, _ := newTestSession(t)
	require.NoError(t, s.Reconstruct([]byte(doc)))

	pages := s.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].SourceID, "absent sourcePageId marks a root")
	assert.Equal(t, 3, pages[1].SourceID)
}

func TestSave_RecordsSnapshotInHistory(t *testing.T) {
	store := history.NewStore()
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema())

	s := New(Config{Handle: "ds-root", History: store})
	p, err := s.NewPage("p", nil)
	require.NoError(t, err)
	p.SetView(view.SchemaView{Base: baseFor("h", 1)})

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, s.Save(path))

	snaps, err := store.ListSnapshots(10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, core.Handle("ds-root"), snaps[0].DatasetHandle)
	assert.Equal(t, path, snaps[0].Path)
	assert.Equal(t, 1, snaps[0].PageCount)
}

func TestSave_WritesJSONFile(t *testing.T) {
	s := populatedSession(t)
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, s.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	restored, _ := newTestSession(t)
	require.NoError(t, restored.Reconstruct(data))
	assert.Len(t, restored.Pages(), len(s.Pages())-1)
}
