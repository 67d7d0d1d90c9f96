// Package process provides subprocess supervision for Levl Core.
//
// Two modes are supported:
//
//   - Manager: long-lived processes (the ComfyUI server) with automatic
//     restart, health check watchdog and graceful SIGTERM/SIGKILL shutdown.
//   - Run: one-shot invocations (Blender builds, GameCraft generation,
//     ffmpeg) with captured output and timeout enforcement.
//
// Both place children in their own process group so the entire process
// tree can be signalled on shutdown.
package process
