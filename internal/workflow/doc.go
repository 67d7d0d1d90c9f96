// Package workflow loads, repairs and parameterises ComfyUI workflow
// graphs stored as JSON documents.
//
// Graphs exported by different ComfyUI frontends drift in shape: node
// ids arrive as strings, legacy "pos" fields stand in for "position",
// link tables carry truncated or null entries, and whole sections such
// as "groups" or "config" go missing. Normalize repairs all of that so
// downstream consumers can rely on a single schema. Because node
// payloads vary per custom node pack, nodes are kept as loose JSON
// objects with typed accessors rather than a fixed struct.
//
// The package also applies runtime parameters to a graph: placeholder
// substitution ({INPUT_PATH}, {REF_IMAGE}, {OUTPUT_PATH}) inside node
// fields, JSON merge patches for arbitrary overrides, and the
// meta.dynamic_overrides block consumed by render-side scripts.
package workflow
