package domain

// Label is a coarse noise-intensity category.
type Label string

const (
	LabelSilent   Label = "silent"
	LabelQuiet    Label = "quiet"
	LabelNormal   Label = "normal"
	LabelLoud     Label = "loud"
	LabelVeryLoud Label = "very_loud"

	// LabelUnknown is returned when a level cannot be mapped to a band.
	// It is never one of Labels.
	LabelUnknown Label = "unknown"
)

// Labels is the fixed label vocabulary ordered from quietest to loudest.
var Labels = [...]Label{LabelSilent, LabelQuiet, LabelNormal, LabelLoud, LabelVeryLoud}

// NumBands is the number of noise bands. Adaptive classification clusters
// history into exactly this many centroids so every band has a label.
const NumBands = len(Labels)

// ParseLabel returns the standard label named by s.
func ParseLabel(s string) (Label, bool) {
	for _, l := range Labels {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// Rank returns the label's position in Labels, or -1 if it is not a standard label.
func (l Label) Rank() int {
	for i, std := range Labels {
		if std == l {
			return i
		}
	}
	return -1
}

func (l Label) String() string { return string(l) }

// Threshold cutoffs in dB. Each is the inclusive lower bound of the next band.
const (
	quietMinDB    = 24.0
	normalMinDB   = 33.0
	loudMinDB     = 50.0
	veryLoudMinDB = 65.0
)

// ClassifyFixed maps a level to a band using static cutoffs.
//
//	level < 24        silent
//	24 <= level < 33  quiet
//	33 <= level < 50  normal
//	50 <= level < 65  loud
//	level >= 65       very_loud
func ClassifyFixed(level float64) Label {
	switch {
	case level < quietMinDB:
		return LabelSilent
	case level < normalMinDB:
		return LabelQuiet
	case level < loudMinDB:
		return LabelNormal
	case level < veryLoudMinDB:
		return LabelLoud
	default:
		return LabelVeryLoud
	}
}
