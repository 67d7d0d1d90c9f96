package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apapsch/go-jsonmerge/v2"
)

// Placeholder tokens recognised inside workflow templates.
const (
	PlaceholderInputPath  = "{INPUT_PATH}"
	PlaceholderRefImage   = "{REF_IMAGE}"
	PlaceholderOutputPath = "{OUTPUT_PATH}"
)

// substitutedFields are the node fields placeholder substitution
// descends into. Other fields (titles, colors, link tables) are left
// untouched.
var substitutedFields = []string{"properties", "widgets_values", "inputs"}

// Placeholders carries the runtime values substituted into a workflow
// template. Empty fields leave their token in place so partially
// parameterised templates stay reusable.
type Placeholders struct {
	InputPath  string
	RefImage   string
	OutputPath string
}

// ApplyPlaceholders returns a deep copy of the graph with placeholder
// tokens replaced inside every node's properties, widgets_values and
// inputs fields. The original graph is never modified.
//
// Parameters:
//   - p: replacement values; empty fields are skipped
//
// Returns:
//   - Graph: substituted copy
func (g Graph) ApplyPlaceholders(p Placeholders) Graph {
	repl := map[string]string{}
	if p.InputPath != "" {
		repl[PlaceholderInputPath] = p.InputPath
	}
	if p.RefImage != "" {
		repl[PlaceholderRefImage] = p.RefImage
	}
	if p.OutputPath != "" {
		repl[PlaceholderOutputPath] = p.OutputPath
	}

	out := g.Clone()
	if len(repl) == 0 {
		return out
	}

	for _, n := range out.Nodes() {
		for _, field := range substitutedFields {
			if v, ok := n[field]; ok {
				n[field] = substitute(v, repl)
			}
		}
	}
	return out
}

// substitute walks strings, lists and objects, replacing every
// placeholder occurrence.
func substitute(v interface{}, repl map[string]string) interface{} {
	switch t := v.(type) {
	case string:
		for token, value := range repl {
			t = strings.ReplaceAll(t, token, value)
		}
		return t
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, entry := range t {
			out[i] = substitute(entry, repl)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, entry := range t {
			out[k] = substitute(entry, repl)
		}
		return out
	default:
		return t
	}
}

// ApplyOverrides merges a JSON merge patch into the graph and returns
// the merged result. Keys absent from the graph are copied from the
// patch, existing keys are replaced. The original graph is never
// modified.
//
// Parameters:
//   - patch: JSON object to merge
//
// Returns:
//   - Graph: merged copy
//   - error: ErrMergeFailed wrapped with detail
func (g Graph) ApplyOverrides(patch []byte) (Graph, error) {
	doc, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("%w: encode graph: %v", ErrMergeFailed, err)
	}

	merger := jsonmerge.Merger{CopyNonexistent: true}
	merged, err := merger.MergeBytes(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}

	out, err := Parse(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", ErrMergeFailed, err)
	}
	return out, nil
}

// DynamicOverrides is the meta.dynamic_overrides block consumed by
// render-side scripts at execution time.
type DynamicOverrides struct {
	VideoPath      string `json:"video_path,omitempty"`
	StyleImagePath string `json:"style_image_path,omitempty"`
	OutputDir      string `json:"output_dir,omitempty"`
}

// SetDynamicOverrides merges the non-empty fields of d into
// meta.dynamic_overrides, creating the block when absent.
func (g Graph) SetDynamicOverrides(d DynamicOverrides) {
	meta := g.Meta()
	block, ok := meta["dynamic_overrides"].(map[string]interface{})
	if !ok {
		block = map[string]interface{}{}
		meta["dynamic_overrides"] = block
	}

	if d.VideoPath != "" {
		block["video_path"] = d.VideoPath
	}
	if d.StyleImagePath != "" {
		block["style_image_path"] = d.StyleImagePath
	}
	if d.OutputDir != "" {
		block["output_dir"] = d.OutputDir
	}
}

// SetImagePaths points every "Load Image (Batch)" node at inputDir and
// every "Save Image" node at outputPrefix. Both live in
// widgets_values[0] by convention; nodes of other types are left
// alone.
func (g Graph) SetImagePaths(inputDir, outputPrefix string) {
	if inputDir != "" {
		for _, n := range g.FindNodes("Load Image (Batch)") {
			n.SetWidget(0, inputDir)
		}
	}
	if outputPrefix != "" {
		for _, n := range g.FindNodes("Save Image") {
			n.SetWidget(0, outputPrefix)
		}
	}
}
