package analysis

import "errors"

var (
	// ErrVideoNotFound indicates the input video does not exist.
	ErrVideoNotFound = errors.New("analysis: video not found")

	// ErrProbeFailed indicates ffprobe could not read the container.
	ErrProbeFailed = errors.New("analysis: probe failed")

	// ErrExtractFailed indicates ffmpeg frame extraction failed.
	ErrExtractFailed = errors.New("analysis: frame extraction failed")

	// ErrNoFrames indicates extraction produced no frames.
	ErrNoFrames = errors.New("analysis: no frames extracted")
)

// VideoInfo describes a video container.
type VideoInfo struct {
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Duration   float64 `json:"duration"`
}

// ColorShare is one dominant color and its share of the frame.
type ColorShare struct {
	RGB        [3]int  `json:"color_rgb"`
	Percentage float64 `json:"percentage"`
}

// Lighting summarises the lighting conditions of a frame. Brightness
// and contrast are mean and standard deviation of the luma channel on
// a 0-255 scale.
type Lighting struct {
	Brightness     float64 `json:"brightness"`
	Contrast       float64 `json:"contrast"`
	Saturation     float64 `json:"saturation"`
	IsDark         bool    `json:"is_dark"`
	IsBright       bool    `json:"is_bright"`
	IsHighContrast bool    `json:"is_high_contrast"`
}

// FrameAnalysis is the analysis of a single sampled frame. Depth and
// Objects come from the frame's sidecar document when an external
// model runner produced one.
type FrameAnalysis struct {
	FrameID        int           `json:"frame_id"`
	Timestamp      float64       `json:"timestamp"`
	FramePath      string        `json:"frame_path"`
	DominantColors []ColorShare  `json:"dominant_colors"`
	Lighting       Lighting      `json:"lighting"`
	Depth          *DepthSummary `json:"depth_summary,omitempty"`
	Objects        *ObjectSet    `json:"objects,omitempty"`
}

// MotionSummary holds aggregate statistics of camera motion.
type MotionSummary struct {
	AvgMotion      float64 `json:"avg_motion"`
	MaxMotion      float64 `json:"max_motion"`
	MotionVariance float64 `json:"motion_variance"`
}

// CameraMotion profiles camera movement over the sampled frames.
// Magnitudes holds one inter-frame motion estimate per consecutive
// frame pair.
type CameraMotion struct {
	Magnitudes []float64     `json:"motion_magnitude"`
	Summary    MotionSummary `json:"motion_summary"`
}

// ReconstructionHints flag whether the analysed material is usable for
// 3D reconstruction. Suitability requires both enough sampled frames
// and depth data from the model runner.
type ReconstructionHints struct {
	HasDepthData  bool `json:"has_depth_data"`
	HasObjectData bool `json:"has_object_data"`
	FrameCount    int  `json:"frame_count"`
	SuitableFor3D bool `json:"suitable_for_3d"`
}

// ElementStats aggregates one detected label across the clip.
// Frequency is the number of frames the label appears in.
type ElementStats struct {
	Frequency int     `json:"frequency"`
	AvgCount  float64 `json:"avg_count"`
	MaxCount  int     `json:"max_count"`
}

// EnvironmentLayout summarises the scene across all sampled frames.
type EnvironmentLayout struct {
	// SceneElements aggregates detected object labels.
	SceneElements map[string]ElementStats `json:"scene_elements"`

	// DominantPalette is the merged color palette of the whole clip.
	DominantPalette []ColorShare `json:"dominant_palette"`

	// AvgLighting averages per-frame lighting metrics.
	AvgLighting Lighting `json:"avg_lighting"`

	Hints ReconstructionHints `json:"reconstruction_hints"`
}

// Results is the complete output of one processing run.
type Results struct {
	VideoInfo         VideoInfo         `json:"video_info"`
	Frames            []FrameAnalysis   `json:"frames"`
	CameraMotion      CameraMotion      `json:"camera_motion"`
	EnvironmentLayout EnvironmentLayout `json:"environment_layout"`
	Metadata          Metadata          `json:"processing_metadata"`
}

// Metadata records how a run was performed.
type Metadata struct {
	FrameStep      int    `json:"frame_step"`
	FramesAnalysed int    `json:"frames_analysed"`
	OutputDir      string `json:"output_directory"`
}
