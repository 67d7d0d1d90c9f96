package api

import (
	"io"
	"net/http"

	"github.com/levlstudio/levl-core/internal/workflow"
)

// patchParams carries optional placeholder values for POST /workflows/patch.
// They arrive as query parameters so the body stays a plain graph.
type patchParams struct {
	inputPath  string
	refImage   string
	outputPath string
}

func (p patchParams) empty() bool {
	return p.inputPath == "" && p.refImage == "" && p.outputPath == ""
}

// handleWorkflowPatch normalizes a posted workflow graph and optionally
// substitutes placeholder paths. The repaired graph is returned as-is,
// ready for submission to ComfyUI.
func (s *Server) handleWorkflowPatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read body: "+err.Error())
		return
	}

	g, err := workflow.Parse(body)
	if err != nil {
		writeBadRequest(w, "invalid workflow: "+err.Error())
		return
	}
	g.Normalize()

	params := patchParams{
		inputPath:  r.URL.Query().Get("input_path"),
		refImage:   r.URL.Query().Get("ref_image"),
		outputPath: r.URL.Query().Get("output_path"),
	}
	if !params.empty() {
		g = g.ApplyPlaceholders(workflow.Placeholders{
			InputPath:  params.inputPath,
			RefImage:   params.refImage,
			OutputPath: params.outputPath,
		})
	}

	writeJSON(w, http.StatusOK, g)
}
