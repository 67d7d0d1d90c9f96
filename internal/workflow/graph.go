package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Graph is a ComfyUI workflow document. The root is a loose JSON
// object because exported graphs differ per frontend and custom node
// pack; typed access goes through the accessor methods.
type Graph map[string]interface{}

// Node is a single graph node, kept as a loose JSON object for the
// same reason as Graph.
type Node map[string]interface{}

// Parse decodes a workflow document from raw JSON.
//
// Some tools wrap the graph as {"workflow": {...}}; Parse unwraps that
// automatically so callers always receive the graph itself.
//
// Parameters:
//   - data: raw JSON document
//
// Returns:
//   - Graph: decoded graph
//   - error: ErrEmptyDocument, ErrInvalidJSON or ErrNotObject
func Parse(data []byte) (Graph, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, ErrNotObject
	}

	if inner, ok := obj["workflow"].(map[string]interface{}); ok {
		return Graph(inner), nil
	}
	return Graph(obj), nil
}

// Load reads and parses a workflow document from disk.
//
// Parameters:
//   - path: path to the workflow JSON file
//
// Returns:
//   - Graph: decoded graph
//   - error: non-nil if the file cannot be read or parsed
func Load(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}

	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("workflow: parse %s: %w", path, err)
	}
	return g, nil
}

// Save writes the graph to disk as indented JSON. The write goes
// through a temporary file and rename so readers never observe a
// partial document.
//
// Parameters:
//   - path: destination file path
//
// Returns:
//   - error: non-nil if encoding or writing fails
func (g Graph) Save(path string) error {
	data, err := g.Bytes()
	if err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("workflow: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("workflow: rename %s: %w", path, err)
	}
	return nil
}

// Bytes encodes the graph as indented JSON.
func (g Graph) Bytes() ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("workflow: encode: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy of the graph. Mutating the copy never
// affects the original.
func (g Graph) Clone() Graph {
	return Graph(deepCopyMap(g))
}

// Nodes returns the node list. Entries that are not JSON objects are
// skipped; Normalize removes them permanently.
func (g Graph) Nodes() []Node {
	raw, ok := g["nodes"].([]interface{})
	if !ok {
		return nil
	}

	nodes := make([]Node, 0, len(raw))
	for _, entry := range raw {
		if obj, ok := entry.(map[string]interface{}); ok {
			nodes = append(nodes, Node(obj))
		}
	}
	return nodes
}

// FindNodes returns every node whose "type" field equals nodeType.
func (g Graph) FindNodes(nodeType string) []Node {
	var matched []Node
	for _, n := range g.Nodes() {
		if n.Type() == nodeType {
			matched = append(matched, n)
		}
	}
	return matched
}

// Meta returns the graph's meta block, creating it when absent.
func (g Graph) Meta() map[string]interface{} {
	if meta, ok := g["meta"].(map[string]interface{}); ok {
		return meta
	}
	meta := map[string]interface{}{}
	g["meta"] = meta
	return meta
}

// ID returns the node id, coercing numeric and string forms.
func (n Node) ID() (int, bool) {
	return toInt(n["id"])
}

// Type returns the node's "type" field, or "" when missing.
func (n Node) Type() string {
	s, _ := n["type"].(string)
	return s
}

// Widgets returns the node's widgets_values list.
func (n Node) Widgets() []interface{} {
	w, _ := n["widgets_values"].([]interface{})
	return w
}

// SetWidget sets widgets_values[index], growing the list with nils as
// needed.
func (n Node) SetWidget(index int, value interface{}) {
	w := n.Widgets()
	for len(w) <= index {
		w = append(w, nil)
	}
	w[index] = value
	n["widgets_values"] = w
}

// toInt coerces JSON scalar forms of an integer.
func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		return 0, false
	case string:
		i, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// toFloats coerces a JSON array of numbers to []float64.
func toFloats(v interface{}) ([]float64, bool) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(raw))
	for _, entry := range raw {
		f, ok := entry.(float64)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, entry := range t {
			out[i] = deepCopyValue(entry)
		}
		return out
	default:
		return t
	}
}
