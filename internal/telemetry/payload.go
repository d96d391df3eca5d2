package telemetry

import (
	"github.com/ppiankov/authguard/internal/model"
)

// MaxPathPoints caps the pointer samples sent per flush.
const MaxPathPoints = 50

// Fingerprint is the one-shot device descriptor bundle.
type Fingerprint struct {
	UserAgent  string `json:"userAgent"`
	ScreenRes  string `json:"screenRes"`
	ColorDepth int    `json:"colorDepth"`
	Cores      int    `json:"cores"`
	Timezone   string `json:"timezone"`
}

// Telemetry is the wire form of one snapshot.
type Telemetry struct {
	FlightVec []float64          `json:"flight_vec"`
	DwellVec  []float64          `json:"dwell_vec"`
	MousePath []model.MousePoint `json:"mouse_path"`
	BotFlags  []string           `json:"bot_flags"`
}

// Payload is the request body for /v1/verify.
type Payload struct {
	UserUID     string       `json:"user_uid"`
	Fingerprint *Fingerprint `json:"fingerprint,omitempty"`
	Telemetry   Telemetry    `json:"telemetry"`
}

// BuildPayload converts a snapshot into a request body. The mouse path keeps
// only the newest MaxPathPoints samples. envFlags are merged ahead of the
// snapshot's own flags without duplicates. fp may be nil.
func BuildPayload(userID string, snap Snapshot, envFlags []string, fp *Fingerprint) Payload {
	path := snap.MousePath
	if len(path) > MaxPathPoints {
		path = path[len(path)-MaxPathPoints:]
	}

	return Payload{
		UserUID:     userID,
		Fingerprint: fp,
		Telemetry: Telemetry{
			FlightVec: orEmpty(snap.Flights),
			DwellVec:  orEmpty(snap.Dwells),
			MousePath: append([]model.MousePoint{}, path...),
			BotFlags:  mergeFlags(envFlags, snap.Flags),
		},
	}
}

func orEmpty(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func mergeFlags(sets ...[]string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, set := range sets {
		for _, f := range set {
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
