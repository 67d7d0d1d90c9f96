// Package job tracks pipeline jobs.
//
// A job records one unit of pipeline work: a bridge command, a ComfyUI
// prompt, a Blender build, a GameCraft generation or a full one-click
// run. Jobs move queued -> running -> done/failed and are persisted in
// SQLite so history survives restarts.
//
// The Tracker wraps a Repository with an in-memory cache of active and
// recent jobs. All lookups return deep copies; callers can safely
// modify what they receive.
package job
