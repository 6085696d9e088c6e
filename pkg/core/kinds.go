package core

import "fmt"

// Kind tags one of the view kinds a page can display. The set is closed:
// serialization dispatch and resolution selection switch exhaustively over
// it, and unknown tags are rejected, never guessed.
type Kind string

const (
	KindTable              Kind = "Table"
	KindHistogram          Kind = "Histogram"
	KindHistogram2D        Kind = "Histogram2D"
	KindHeatmap            Kind = "Heatmap"
	KindSchema             Kind = "Schema"
	KindTrellisHistogram   Kind = "TrellisHistogram"
	KindTrellis2DHistogram Kind = "Trellis2DHistogram"
	KindTrellisHeatmap     Kind = "TrellisHeatmap"
	KindHeavyHitters       Kind = "HeavyHitters"
	KindSpectrum           Kind = "Spectrum"
	KindLoad               Kind = "Load"
)

// AllKinds lists every known view kind, in a stable order.
func AllKinds() []Kind {
	return []Kind{
		KindTable,
		KindHistogram,
		KindHistogram2D,
		KindHeatmap,
		KindSchema,
		KindTrellisHistogram,
		KindTrellis2DHistogram,
		KindTrellisHeatmap,
		KindHeavyHitters,
		KindSpectrum,
		KindLoad,
	}
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindTable, KindHistogram, KindHistogram2D, KindHeatmap, KindSchema,
		KindTrellisHistogram, KindTrellis2DHistogram, KindTrellisHeatmap,
		KindHeavyHitters, KindSpectrum, KindLoad:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind converts a serialized tag into a Kind, rejecting anything
// outside the known set.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown view kind %q", s)
	}
	return k, nil
}
