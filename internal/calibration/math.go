package calibration

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp interpolates linearly between a and b. It returns a and b exactly at
// t=0 and t=1.
func Lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// Smoothstep is the cubic ease t²(3-2t) for t in [0, 1].
func Smoothstep(t float64) float64 {
	t = Clamp(t, 0, 1)
	return t * t * (3 - 2*t)
}

// Level labels a percentage against the safety thresholds.
type Level string

const (
	LevelNormal    Level = "normal"
	LevelOverdrive Level = "overdrive"
	LevelRisk      Level = "risk"
)

// Thresholds mark where brightness starts to overdrive the panel and where it
// becomes a risk to it. Used for labelling only, never for clamping.
// Zero thresholds are disabled.
type Thresholds struct {
	Overdrive float64 `json:"overdrive,omitempty"`
	Risk      float64 `json:"risk,omitempty"`
}

// Classify returns the level for percentage p.
func (t Thresholds) Classify(p float64) Level {
	switch {
	case t.Risk > 0 && p > t.Risk:
		return LevelRisk
	case t.Overdrive > 0 && p > t.Overdrive:
		return LevelOverdrive
	default:
		return LevelNormal
	}
}
