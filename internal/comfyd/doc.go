// Package comfyd manages the lifecycle of a local ComfyUI server.
//
// When managed mode is enabled, the manager launches ComfyUI under
// process supervision: the process runs in its own group, crash
// restarts are rate limited, and a watchdog probes /system_stats so a
// hung interpreter gets killed and relaunched. When managed mode is
// disabled, the manager only verifies that an externally run server is
// reachable.
//
// Either way, callers obtain a ready comfy.Client from the manager and
// never care who started the server.
package comfyd
