package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/levlstudio/levl-core/internal/orchestrator"
)

// renderRequest is the body for POST /render.
type renderRequest struct {
	Action  string                 `json:"action,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// handleRender enqueues a command on the Unreal bridge and returns the
// tracking job. The command runs asynchronously; poll the job or
// subscribe to the WebSocket hub for completion.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Action == "" {
		req.Action = orchestrator.ActionBuildAndRender
	}

	j, err := s.orch.RunBridgeAction(r.Context(), req.Action, req.Payload)
	if err != nil {
		s.logger.Error("failed to enqueue render", "action", req.Action, "error", err)
		writeInternalError(w, "failed to enqueue render")
		return
	}

	writeJSON(w, http.StatusAccepted, j)
}

// handleOneClick starts the full render-and-stylize flow and returns
// the queued job immediately.
func (s *Server) handleOneClick(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	j, err := s.orch.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrMissingLevel) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("failed to submit one-click flow", "error", err)
		writeInternalError(w, "failed to submit one-click flow")
		return
	}

	writeJSON(w, http.StatusAccepted, j)
}

// handleComfySubmit submits a workflow for an existing video and waits
// for ComfyUI to accept the prompt.
func (s *Server) handleComfySubmit(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.StylizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.VideoPath == "" {
		writeBadRequest(w, "video_path is required")
		return
	}

	j, err := s.orch.StylizeVideo(r.Context(), req)
	if err != nil {
		s.logger.Warn("workflow submission failed", "video", req.VideoPath, "error", err)
		if j != nil {
			writeJSON(w, http.StatusBadGateway, j)
			return
		}
		writeUpstreamError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, j)
}
