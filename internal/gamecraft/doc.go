// Package gamecraft drives Hunyuan-GameCraft video generation.
//
// The runner validates a GameCraft installation, builds the torchrun
// invocation for hymm_sp/sample_batch.py and supervises the run with a
// hard timeout. Generation requests describe a world prompt plus a
// camera action sequence; a handful of built-in presets cover common
// world types.
//
// The pipeline type chains generation with video analysis and scene
// export so one call takes a prompt all the way to reconstruction
// inputs.
package gamecraft
