package remote

import (
	"fmt"

	"github.com/skylens-io/skylens/pkg/core"
)

// Display constants shared with the rendering surfaces. MinDotSize is the
// smallest drawable heatmap cell in pixels; MinBarWidth the narrowest
// useful histogram bar.
const (
	MinDotSize  = 3
	MinBarWidth = 15
)

// Resolution maps the destination view kind and the available viewport
// size to the bucket/sample resolutions to request, one entry per bucketed
// axis. A kind with no bucketed axes is a contract violation.
func Resolution(widthPx, heightPx int, kind core.Kind) ([]int, error) {
	switch kind {
	case core.KindHistogram, core.KindTrellisHistogram:
		return []int{widthPx}, nil
	case core.KindHistogram2D, core.KindTrellis2DHistogram:
		return []int{widthPx / MinBarWidth, heightPx / MinDotSize}, nil
	case core.KindHeatmap, core.KindTrellisHeatmap:
		return []int{widthPx / MinDotSize, heightPx / MinDotSize}, nil
	default:
		return nil, fmt.Errorf("no resolution defined for view kind %q", kind)
	}
}
