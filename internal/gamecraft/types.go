package gamecraft

import "errors"

var (
	// ErrInstallInvalid indicates the GameCraft directory is missing
	// required files.
	ErrInstallInvalid = errors.New("gamecraft: invalid installation")

	// ErrCheckpointMissing indicates the requested model weights are
	// not downloaded.
	ErrCheckpointMissing = errors.New("gamecraft: model checkpoint not found")

	// ErrActionMismatch indicates actions and action speeds differ in
	// length.
	ErrActionMismatch = errors.New("gamecraft: actions and action_speeds must have same length")

	// ErrGenerationFailed indicates the inference run exited non-zero.
	ErrGenerationFailed = errors.New("gamecraft: generation failed")

	// ErrNoVideo indicates the run produced no video file.
	ErrNoVideo = errors.New("gamecraft: no video found in output directory")

	// ErrUnknownPreset indicates the named world preset does not exist.
	ErrUnknownPreset = errors.New("gamecraft: unknown preset")
)

// Model checkpoint filenames shipped with GameCraft.
const (
	checkpointFull      = "mp_rank_00_model_states.pt"
	checkpointDistilled = "mp_rank_00_model_states_distill.pt"
)

// Request describes one video generation run.
type Request struct {
	// Prompt is the world description.
	Prompt string `json:"prompt"`

	// Actions is the camera action sequence, one of w/a/s/d per step.
	Actions []string `json:"actions"`

	// ActionSpeeds holds one speed (0-3) per action.
	ActionSpeeds []float64 `json:"action_speeds"`

	// ImagePath optionally seeds generation from a start image.
	ImagePath string `json:"image_path,omitempty"`

	// VideoWidth and VideoHeight are the output dimensions.
	VideoWidth  int `json:"video_width"`
	VideoHeight int `json:"video_height"`

	// CfgScale is the classifier-free guidance scale.
	CfgScale float64 `json:"cfg_scale"`

	// InferenceSteps is the number of denoising steps.
	InferenceSteps int `json:"inference_steps"`

	// Seed fixes the random seed. 0 applies the default.
	Seed int `json:"seed,omitempty"`

	// OutputDir receives the generated video.
	OutputDir string `json:"output_dir,omitempty"`

	// UseDistilled selects the faster distilled checkpoint.
	UseDistilled bool `json:"use_distilled,omitempty"`

	// UseFP8 enables FP8 weight optimisation.
	UseFP8 bool `json:"use_fp8,omitempty"`
}

// applyDefaults fills the zero-value fields of a request in place.
func (r *Request) applyDefaults() {
	if len(r.Actions) == 0 {
		r.Actions = []string{"w", "s", "d", "a"}
	}
	if len(r.ActionSpeeds) == 0 {
		r.ActionSpeeds = make([]float64, len(r.Actions))
		for i := range r.ActionSpeeds {
			r.ActionSpeeds[i] = 0.2
		}
	}
	if r.VideoWidth == 0 {
		r.VideoWidth = 704
	}
	if r.VideoHeight == 0 {
		r.VideoHeight = 1216
	}
	if r.CfgScale == 0 {
		r.CfgScale = 2.0
	}
	if r.InferenceSteps == 0 {
		r.InferenceSteps = 50
	}
	if r.Seed == 0 {
		r.Seed = 250160
	}
}

// Result is the outcome of one generation run.
type Result struct {
	// VideoPath is the generated video file.
	VideoPath string `json:"video_path"`

	// DurationSeconds is the wall-clock generation time.
	DurationSeconds float64 `json:"duration_seconds"`
}

// Preset is a reusable world generation configuration.
type Preset struct {
	Prompt         string    `json:"prompt"`
	Actions        []string  `json:"actions"`
	ActionSpeeds   []float64 `json:"action_speeds"`
	CfgScale       float64   `json:"cfg_scale"`
	InferenceSteps int       `json:"inference_steps"`
}

// worldPresets are the built-in world types.
var worldPresets = map[string]Preset{
	"medieval_village": {
		Prompt:         "A charming medieval village with cobblestone streets, thatched-roof houses, and vibrant flower gardens under a bright blue sky",
		Actions:        []string{"w", "s", "d", "a"},
		ActionSpeeds:   []float64{0.2, 0.2, 0.2, 0.2},
		CfgScale:       2.0,
		InferenceSteps: 50,
	},
	"futuristic_city": {
		Prompt:         "Futuristic city with neon lights, flying cars, towering skyscrapers, and holographic advertisements in a cyberpunk setting",
		Actions:        []string{"w", "w", "s", "s", "d", "d", "a", "a"},
		ActionSpeeds:   []float64{0.3, 0.3, 0.2, 0.2, 0.25, 0.25, 0.25, 0.25},
		CfgScale:       2.0,
		InferenceSteps: 50,
	},
	"mystical_forest": {
		Prompt:         "Mystical forest with glowing mushrooms, ancient trees, magical particles, and ethereal lighting filtering through the canopy",
		Actions:        []string{"w", "a", "w", "d", "s", "d", "w", "a"},
		ActionSpeeds:   []float64{0.15, 0.15, 0.15, 0.15, 0.1, 0.15, 0.15, 0.15},
		CfgScale:       2.5,
		InferenceSteps: 60,
	},
	"desert_oasis": {
		Prompt:         "Desert oasis with palm trees, crystal clear water, ancient ruins, and golden sand dunes under a sunset sky",
		Actions:        []string{"w", "s", "w", "a", "d", "w"},
		ActionSpeeds:   []float64{0.2, 0.2, 0.2, 0.3, 0.3, 0.2},
		CfgScale:       2.0,
		InferenceSteps: 50,
	},
}

// PresetNames returns the available preset names.
func PresetNames() []string {
	names := make([]string, 0, len(worldPresets))
	for name := range worldPresets {
		names = append(names, name)
	}
	return names
}

// PresetRequest builds a generation request from a named preset.
//
// Parameters:
//   - name: preset name, see PresetNames
//
// Returns:
//   - Request: preset values with remaining fields at defaults
//   - error: ErrUnknownPreset
func PresetRequest(name string) (Request, error) {
	p, ok := worldPresets[name]
	if !ok {
		return Request{}, ErrUnknownPreset
	}

	req := Request{
		Prompt:         p.Prompt,
		Actions:        append([]string(nil), p.Actions...),
		ActionSpeeds:   append([]float64(nil), p.ActionSpeeds...),
		CfgScale:       p.CfgScale,
		InferenceSteps: p.InferenceSteps,
	}
	req.applyDefaults()
	return req, nil
}
