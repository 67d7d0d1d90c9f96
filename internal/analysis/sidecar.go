package analysis

import (
	"encoding/json"
	"os"
	"strings"
)

// detectionThreshold filters low-confidence object detections.
const detectionThreshold = 0.5

// DepthSummary condenses a per-frame depth map produced by an external
// estimator. Values are on the estimator's normalised 0-1 scale.
type DepthSummary struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Detection is one detected object instance.
type Detection struct {
	Label string             `json:"label"`
	Score float64            `json:"score"`
	Box   map[string]float64 `json:"box,omitempty"`
}

// ObjectSet holds the detections of a single frame.
type ObjectSet struct {
	Detections   []Detection    `json:"detections"`
	CountByLabel map[string]int `json:"count_by_label"`
}

// frameSidecar is the document an external model runner may leave next
// to an extracted frame (frame_000042.png -> frame_000042.json).
type frameSidecar struct {
	Depth   *DepthSummary `json:"depth"`
	Objects *ObjectSet    `json:"objects"`
}

// loadSidecar reads the optional model-output document for a frame.
// A missing or unreadable sidecar yields nils; detections below the
// confidence threshold are dropped and the label counts rebuilt.
func loadSidecar(framePath string) (*DepthSummary, *ObjectSet) {
	ext := strings.LastIndex(framePath, ".")
	if ext < 0 {
		return nil, nil
	}

	data, err := os.ReadFile(framePath[:ext] + ".json")
	if err != nil {
		return nil, nil
	}

	var sc frameSidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, nil
	}

	if sc.Objects != nil {
		kept := make([]Detection, 0, len(sc.Objects.Detections))
		counts := map[string]int{}
		for _, d := range sc.Objects.Detections {
			if d.Score <= detectionThreshold {
				continue
			}
			kept = append(kept, d)
			counts[d.Label]++
		}
		sc.Objects.Detections = kept
		sc.Objects.CountByLabel = counts
	}
	return sc.Depth, sc.Objects
}
