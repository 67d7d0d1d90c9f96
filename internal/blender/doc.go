// Package blender runs headless Blender builds.
//
// A build invokes Blender as
//
//	blender --background --python <script> -- <args...>
//
// under a process group with a hard timeout. Scripts report their
// outcome by printing a single line of the form
//
//	LEVL_RESULT:{"blend_path": "...", ...}
//
// to stdout; the runner extracts and decodes that line. Everything
// else Blender prints is kept for diagnostics but otherwise ignored.
package blender
