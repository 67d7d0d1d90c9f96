// Package orchestrator sequences the one-click Unreal-to-ComfyUI flow.
//
// The flow has two stages. The render stage drops an
// oneclick_build_and_render command on the file bridge and waits for
// the Unreal watcher to answer with a rendered movie path. The stylize
// stage loads the configured workflow template, normalizes it, injects
// the movie path and style parameters, and submits the graph to
// ComfyUI.
//
// Every flow runs under a tracked job: stage progress is published
// through the event sink, and failures land in the job record as
// structured errors rather than panics. Asynchronous entry points
// (Submit, RunBridgeAction) return the queued job immediately and run
// the flow on a background goroutine; Wait drains those goroutines at
// shutdown.
package orchestrator
