package workflow

import "fmt"

// defaultPosition is assigned to nodes missing a usable position.
var defaultPosition = []float64{0, 0}

// Normalize repairs a graph in place so it satisfies the canonical
// schema expected by ComfyUI:
//
//   - the top level always carries nodes, links, groups and config
//   - every node has id, type, position, flags, order, mode,
//     properties, inputs, outputs and widgets_values
//   - legacy "pos" fields are converted to "position" and removed
//   - link entries shorter than six elements, with null core fields,
//     or referencing node ids not present in the graph are dropped;
//     surviving links are renumbered from 1
//   - last_node_id and last_link_id are recomputed
//
// Normalize is idempotent: running it on an already normalized graph
// changes nothing.
func (g Graph) Normalize() {
	nodes := g.normalizeNodes()

	ids := make(map[int]struct{}, len(nodes))
	for _, n := range nodes {
		if id, ok := n.ID(); ok {
			ids[id] = struct{}{}
		}
	}
	links := g.normalizeLinks(ids)

	if _, ok := g["groups"].([]interface{}); !ok {
		g["groups"] = []interface{}{}
	}
	if _, ok := g["config"].(map[string]interface{}); !ok {
		g["config"] = map[string]interface{}{}
	}

	lastNode := 0
	for _, n := range nodes {
		if id, ok := n.ID(); ok && id > lastNode {
			lastNode = id
		}
	}
	g["last_node_id"] = float64(lastNode)
	g["last_link_id"] = float64(len(links))
}

func (g Graph) normalizeNodes() []Node {
	raw, _ := g["nodes"].([]interface{})

	kept := make([]interface{}, 0, len(raw))
	nodes := make([]Node, 0, len(raw))
	for i, entry := range raw {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		n := Node(obj)
		normalizeNode(n, i)
		kept = append(kept, entry)
		nodes = append(nodes, n)
	}
	g["nodes"] = kept
	return nodes
}

func normalizeNode(n Node, index int) {
	if id, ok := n.ID(); ok {
		n["id"] = float64(id)
	} else {
		n["id"] = float64(index + 1)
	}

	if _, ok := n["type"].(string); !ok {
		n["type"] = "Note"
	}

	// Legacy exports use "pos" instead of "position".
	if pos, ok := n["pos"]; ok {
		if coords, ok := toFloats(pos); ok && len(coords) >= 2 {
			n["position"] = []interface{}{coords[0], coords[1]}
		}
		delete(n, "pos")
	}
	if coords, ok := toFloats(n["position"]); !ok || len(coords) < 2 {
		n["position"] = []interface{}{defaultPosition[0], defaultPosition[1]}
	}

	if _, ok := n["flags"].(map[string]interface{}); !ok {
		n["flags"] = map[string]interface{}{}
	}
	if _, ok := toInt(n["order"]); !ok {
		n["order"] = float64(0)
	}
	if _, ok := toInt(n["mode"]); !ok {
		n["mode"] = float64(0)
	}
	if _, ok := n["properties"].(map[string]interface{}); !ok {
		n["properties"] = map[string]interface{}{}
	}
	if _, ok := n["inputs"].([]interface{}); !ok {
		n["inputs"] = []interface{}{}
	}
	if _, ok := n["outputs"].([]interface{}); !ok {
		n["outputs"] = []interface{}{}
	}
	if _, ok := n["widgets_values"].([]interface{}); !ok {
		n["widgets_values"] = []interface{}{}
	}
}

// normalizeLinks drops malformed and dangling link entries and
// renumbers the survivors consecutively from 1. A link is the array
// [id, source_node, source_slot, target_node, target_slot, type];
// both source and target node ids must be in nodeIDs.
func (g Graph) normalizeLinks(nodeIDs map[int]struct{}) []interface{} {
	raw, _ := g["links"].([]interface{})

	kept := make([]interface{}, 0, len(raw))
	for _, entry := range raw {
		fields, ok := entry.([]interface{})
		if !ok || len(fields) < 6 {
			continue
		}

		nullCore := false
		for _, f := range fields[:6] {
			if f == nil {
				nullCore = true
				break
			}
		}
		if nullCore {
			continue
		}

		link := make([]interface{}, 6)
		valid := true
		for i := 0; i < 5; i++ {
			v, ok := toInt(fields[i])
			if !ok {
				valid = false
				break
			}
			link[i] = float64(v)
		}
		if !valid {
			continue
		}

		source, _ := toInt(fields[1])
		target, _ := toInt(fields[3])
		if _, ok := nodeIDs[source]; !ok {
			continue
		}
		if _, ok := nodeIDs[target]; !ok {
			continue
		}

		if s, ok := fields[5].(string); ok {
			link[5] = s
		} else {
			link[5] = fmt.Sprint(fields[5])
		}

		link[0] = float64(len(kept) + 1)
		kept = append(kept, link)
	}

	g["links"] = kept
	return kept
}
