package workflow

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("plain graph", func(t *testing.T) {
		g, err := Parse([]byte(`{"nodes": [], "links": []}`))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if _, ok := g["nodes"]; !ok {
			t.Error("expected nodes key to survive parsing")
		}
	})

	t.Run("unwraps workflow envelope", func(t *testing.T) {
		g, err := Parse([]byte(`{"workflow": {"nodes": [{"id": 1}]}}`))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(g.Nodes()) != 1 {
			t.Errorf("expected 1 node after unwrap, got %d", len(g.Nodes()))
		}
	})

	t.Run("empty document", func(t *testing.T) {
		if _, err := Parse(nil); !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("expected ErrEmptyDocument, got %v", err)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if _, err := Parse([]byte(`{broken`)); !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("expected ErrInvalidJSON, got %v", err)
		}
	})

	t.Run("non-object root", func(t *testing.T) {
		if _, err := Parse([]byte(`[1, 2, 3]`)); !errors.Is(err, ErrNotObject) {
			t.Errorf("expected ErrNotObject, got %v", err)
		}
	})
}

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")

	g := Graph{"nodes": []interface{}{}, "links": []interface{}{}}
	if err := g.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := loaded["nodes"]; !ok {
		t.Error("expected nodes key after round trip")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the graph file in dir, found %d entries", len(entries))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNormalize_NodeDefaults(t *testing.T) {
	g, err := Parse([]byte(`{"nodes": [{}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g.Normalize()

	nodes := g.Nodes()
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	n := nodes[0]

	if id, ok := n.ID(); !ok || id != 1 {
		t.Errorf("expected node id 1, got %v", n["id"])
	}
	if n.Type() != "Note" {
		t.Errorf("expected fallback type Note, got %q", n.Type())
	}
	if coords, ok := toFloats(n["position"]); !ok || len(coords) != 2 {
		t.Errorf("expected default position, got %v", n["position"])
	}
	for _, field := range []string{"flags", "properties"} {
		if _, ok := n[field].(map[string]interface{}); !ok {
			t.Errorf("expected %s to default to an object, got %v", field, n[field])
		}
	}
	for _, field := range []string{"inputs", "outputs", "widgets_values"} {
		if _, ok := n[field].([]interface{}); !ok {
			t.Errorf("expected %s to default to a list, got %v", field, n[field])
		}
	}
}

func TestNormalize_LegacyPos(t *testing.T) {
	g, err := Parse([]byte(`{"nodes": [{"id": 3, "type": "KSampler", "pos": [120, 340]}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g.Normalize()

	n := g.Nodes()[0]
	if _, ok := n["pos"]; ok {
		t.Error("expected legacy pos field to be removed")
	}
	coords, ok := toFloats(n["position"])
	if !ok || len(coords) != 2 || coords[0] != 120 || coords[1] != 340 {
		t.Errorf("expected position [120 340], got %v", n["position"])
	}
}

func TestNormalize_StringNodeID(t *testing.T) {
	g, err := Parse([]byte(`{"nodes": [{"id": "7", "type": "Note"}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g.Normalize()

	if id, ok := g.Nodes()[0].ID(); !ok || id != 7 {
		t.Errorf("expected coerced id 7, got %v", g.Nodes()[0]["id"])
	}
	if g["last_node_id"] != float64(7) {
		t.Errorf("expected last_node_id 7, got %v", g["last_node_id"])
	}
}

func TestToInt_RejectsTrailingGarbage(t *testing.T) {
	cases := map[string]struct {
		want int
		ok   bool
	}{
		"7":     {want: 7, ok: true},
		"-3":    {want: -3, ok: true},
		"12abc": {},
		"abc":   {},
		"":      {},
	}

	for input, want := range cases {
		got, ok := toInt(input)
		if ok != want.ok || got != want.want {
			t.Errorf("toInt(%q) = %d, %v; want %d, %v", input, got, ok, want.want, want.ok)
		}
	}
}

func TestNormalize_LinkCleaning(t *testing.T) {
	doc := `{
		"nodes": [
			{"id": 1, "type": "LoadImage"},
			{"id": 2, "type": "PreviewImage"},
			{"id": 3, "type": "KSampler"},
			{"id": 4, "type": "CheckpointLoaderSimple"}
		],
		"links": [
			[9, 1, 0, 2, 0, "IMAGE"],
			[10, 1, 0],
			[11, null, 0, 2, 0, "LATENT"],
			[12, "3", 1, 4, 0, "MODEL", "extra"],
			[13, 1, 0, 99, 0, "IMAGE"],
			[14, 98, 0, 2, 0, "IMAGE"]
		]
	}`
	g, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g.Normalize()

	// 10 is too short, 11 has a null field, 13 and 14 point at node
	// ids the graph does not contain.
	links, _ := g["links"].([]interface{})
	if len(links) != 2 {
		t.Fatalf("expected 2 surviving links, got %d", len(links))
	}

	first := links[0].([]interface{})
	if first[0] != float64(1) {
		t.Errorf("expected first link renumbered to 1, got %v", first[0])
	}
	second := links[1].([]interface{})
	if second[0] != float64(2) || second[1] != float64(3) {
		t.Errorf("expected second link [2 3 ...], got %v", second)
	}
	if len(second) != 6 {
		t.Errorf("expected link truncated to 6 fields, got %d", len(second))
	}
	if g["last_link_id"] != float64(2) {
		t.Errorf("expected last_link_id 2, got %v", g["last_link_id"])
	}
}

func TestNormalize_DropsDanglingLinks(t *testing.T) {
	doc := `{
		"nodes": [
			{"id": 1, "type": "LoadImage"},
			{"id": 2, "type": "PreviewImage"}
		],
		"links": [
			[1, 1, 0, 2, 0, "IMAGE"],
			[2, 1, 0, 99, 0, "IMAGE"],
			[3, 99, 0, 1, 0, "IMAGE"]
		]
	}`
	g, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g.Normalize()

	links, _ := g["links"].([]interface{})
	if len(links) != 1 {
		t.Fatalf("expected only the link between existing nodes to survive, got %d", len(links))
	}
	kept := links[0].([]interface{})
	if kept[1] != float64(1) || kept[3] != float64(2) {
		t.Errorf("expected surviving link 1 -> 2, got %v", kept)
	}
	if g["last_link_id"] != float64(1) {
		t.Errorf("expected last_link_id 1, got %v", g["last_link_id"])
	}
}

func TestNormalize_EnsuresTopLevelSections(t *testing.T) {
	g := Graph{}
	g.Normalize()

	for _, key := range []string{"nodes", "links", "groups"} {
		if _, ok := g[key].([]interface{}); !ok {
			t.Errorf("expected %s list, got %v", key, g[key])
		}
	}
	if _, ok := g["config"].(map[string]interface{}); !ok {
		t.Errorf("expected config object, got %v", g["config"])
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	doc := `{
		"nodes": [
			{"id": "2", "pos": [10, 20]},
			{"type": "KSampler", "widgets_values": [42, "euler"]}
		],
		"links": [[5, 2, 0, 3, 0, "IMAGE"], [6, null, 0, 3, 1, "MASK"]]
	}`
	g, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	g.Normalize()
	once, err := g.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	g.Normalize()
	twice, err := g.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	if !bytes.Equal(once, twice) {
		t.Error("expected second Normalize to be a no-op")
	}
}

func TestApplyPlaceholders(t *testing.T) {
	doc := `{
		"nodes": [{
			"id": 1,
			"type": "VHS_LoadVideo",
			"title": "load {INPUT_PATH}",
			"properties": {"source": "{INPUT_PATH}"},
			"widgets_values": ["{INPUT_PATH}", {"ref": "{REF_IMAGE}"}],
			"inputs": [{"path": "{OUTPUT_PATH}"}]
		}]
	}`
	g, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	out := g.ApplyPlaceholders(Placeholders{
		InputPath:  "/data/in.mp4",
		RefImage:   "/data/ref.png",
		OutputPath: "/data/out",
	})

	n := out.Nodes()[0]
	props := n["properties"].(map[string]interface{})
	if props["source"] != "/data/in.mp4" {
		t.Errorf("expected properties substitution, got %v", props["source"])
	}
	widgets := n.Widgets()
	if widgets[0] != "/data/in.mp4" {
		t.Errorf("expected widget substitution, got %v", widgets[0])
	}
	if widgets[1].(map[string]interface{})["ref"] != "/data/ref.png" {
		t.Errorf("expected nested widget substitution, got %v", widgets[1])
	}
	inputs := n["inputs"].([]interface{})
	if inputs[0].(map[string]interface{})["path"] != "/data/out" {
		t.Errorf("expected inputs substitution, got %v", inputs[0])
	}

	// Fields outside the substituted set keep their tokens.
	if n["title"] != "load {INPUT_PATH}" {
		t.Errorf("expected title untouched, got %v", n["title"])
	}

	// The source graph is never modified.
	orig := g.Nodes()[0]
	if orig["properties"].(map[string]interface{})["source"] != "{INPUT_PATH}" {
		t.Error("expected original graph untouched")
	}
}

func TestApplyPlaceholders_EmptyValuesSkipped(t *testing.T) {
	g, err := Parse([]byte(`{"nodes": [{"id": 1, "widgets_values": ["{INPUT_PATH}"]}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	out := g.ApplyPlaceholders(Placeholders{})
	if out.Nodes()[0].Widgets()[0] != "{INPUT_PATH}" {
		t.Error("expected empty placeholder values to leave tokens in place")
	}
}

func TestApplyOverrides(t *testing.T) {
	g, err := Parse([]byte(`{"config": {"fps": 24}, "nodes": []}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	out, err := g.ApplyOverrides([]byte(`{"config": {"fps": 30}, "extra": {"note": "x"}}`))
	if err != nil {
		t.Fatalf("ApplyOverrides() error = %v", err)
	}

	cfg := out["config"].(map[string]interface{})
	if cfg["fps"] != float64(30) {
		t.Errorf("expected fps override 30, got %v", cfg["fps"])
	}
	if _, ok := out["extra"]; !ok {
		t.Error("expected nonexistent keys to be copied from the patch")
	}
	if g["config"].(map[string]interface{})["fps"] != float64(24) {
		t.Error("expected original graph untouched")
	}
}

func TestApplyOverrides_InvalidPatch(t *testing.T) {
	g := Graph{"nodes": []interface{}{}}
	if _, err := g.ApplyOverrides([]byte(`{broken`)); !errors.Is(err, ErrMergeFailed) {
		t.Errorf("expected ErrMergeFailed, got %v", err)
	}
}

func TestSetDynamicOverrides(t *testing.T) {
	g := Graph{}
	g.SetDynamicOverrides(DynamicOverrides{VideoPath: "/renders/a.mp4"})
	g.SetDynamicOverrides(DynamicOverrides{StyleImagePath: "/styles/noir.png"})

	block := g.Meta()["dynamic_overrides"].(map[string]interface{})
	if block["video_path"] != "/renders/a.mp4" {
		t.Errorf("expected video_path preserved, got %v", block["video_path"])
	}
	if block["style_image_path"] != "/styles/noir.png" {
		t.Errorf("expected style_image_path set, got %v", block["style_image_path"])
	}
	if _, ok := block["output_dir"]; ok {
		t.Error("expected empty output_dir to be omitted")
	}
}

func TestSetImagePaths(t *testing.T) {
	doc := `{"nodes": [
		{"id": 1, "type": "Load Image (Batch)", "widgets_values": ["old"]},
		{"id": 2, "type": "Save Image", "widgets_values": []},
		{"id": 3, "type": "KSampler", "widgets_values": ["keep"]}
	]}`
	g, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	g.SetImagePaths("/frames/in", "styled")

	nodes := g.Nodes()
	if nodes[0].Widgets()[0] != "/frames/in" {
		t.Errorf("expected load node widget updated, got %v", nodes[0].Widgets()[0])
	}
	if nodes[1].Widgets()[0] != "styled" {
		t.Errorf("expected save node widget updated, got %v", nodes[1].Widgets()[0])
	}
	if nodes[2].Widgets()[0] != "keep" {
		t.Errorf("expected unrelated node untouched, got %v", nodes[2].Widgets()[0])
	}
}
