// Package comfy is a client for the ComfyUI HTTP and websocket APIs.
//
// The HTTP client covers the endpoints the pipeline needs: readiness
// probing via /object_info, health via /system_stats, prompt
// submission via /prompt and result retrieval via /history. The
// websocket monitor streams execution progress events for a submitted
// prompt.
//
// Every request takes a context.Context; cancellation aborts the
// underlying HTTP request or websocket read.
package comfy
