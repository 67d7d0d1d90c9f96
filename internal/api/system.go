package api

import (
	"net/http"
)

// statusResponse is the body for GET /status.
type statusResponse struct {
	Bridge         interface{}    `json:"bridge"`
	BridgeError    string         `json:"bridge_error,omitempty"`
	ComfyReachable bool           `json:"comfy_reachable"`
	ComfyError     string         `json:"comfy_error,omitempty"`
	ComfyManaged   *managedStatus `json:"comfy_managed,omitempty"`
	Jobs           map[string]int `json:"jobs"`
	WSClients      int            `json:"ws_clients"`
	Version        string         `json:"version"`
}

type managedStatus struct {
	Running bool   `json:"running"`
	Health  string `json:"health,omitempty"`
}

// handleStatus reports bridge queue depth, ComfyUI reachability, managed
// process state, and job counts.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.orch.CheckStatus(r.Context())

	resp := statusResponse{
		Bridge:         st.Bridge,
		BridgeError:    st.BridgeError,
		ComfyReachable: st.ComfyOK,
		ComfyError:     st.ComfyError,
		Jobs:           map[string]int{},
		Version:        s.version,
	}
	for status, count := range st.Jobs {
		resp.Jobs[string(status)] = count
	}
	if s.hub != nil {
		resp.WSClients = s.hub.ClientCount()
	}

	if s.comfyd != nil {
		managed := &managedStatus{Running: s.comfyd.IsRunning()}
		if err := s.comfyd.HealthCheck(r.Context()); err != nil {
			managed.Health = err.Error()
		}
		resp.ComfyManaged = managed
	}

	writeJSON(w, http.StatusOK, resp)
}
