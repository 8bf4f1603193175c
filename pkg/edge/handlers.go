package edge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cityresilience/scenario-engine/internal/apierr"
	"github.com/cityresilience/scenario-engine/pkg/dependency"
)

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req prepareRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.BadInput("malformed JSON body"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, apierr.BadInput(err.Error()))
		return
	}

	summary, err := s.facade.Prepare(r.Context(), req.toFacadeRequest())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryToDTO(summary))
}

func (s *Server) handleListPrepared(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	instances, err := s.facade.ListPrepared(r.Context(), city, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

func (s *Server) handleDescribePrepared(w http.ResponseWriter, r *http.Request) {
	instanceID := r.URL.Query().Get("instance_id")
	if instanceID == "" {
		writeError(w, apierr.BadInput("instance_id is required"))
		return
	}
	inst, anchors, events, err := s.facade.DescribePrepared(r.Context(), instanceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instance": inst,
		"anchors":  anchors,
		"events":   events,
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	instanceID := r.URL.Query().Get("instance_id")
	if instanceID == "" {
		writeError(w, apierr.BadInput("instance_id is required"))
		return
	}
	bucketTicks, err := strconv.Atoi(r.URL.Query().Get("bucket_ticks"))
	if err != nil || bucketTicks <= 0 {
		bucketTicks = 1
	}
	buckets, err := s.facade.Timeline(r.Context(), instanceID, bucketTicks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioInstanceID string `json:"scenario_instance_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.BadInput("malformed JSON body"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, apierr.BadInput(err.Error()))
		return
	}

	handle, err := s.facade.Start(r.Context(), req.ScenarioInstanceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, handleToDTO(handle))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	simRunID := r.URL.Query().Get("sim_run_id")
	if simRunID == "" {
		writeError(w, apierr.BadInput("sim_run_id is required"))
		return
	}
	state, err := s.facade.State(simRunID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToDTO(state))
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	simRunID := r.URL.Query().Get("sim_run_id")
	if simRunID == "" {
		writeError(w, apierr.BadInput("sim_run_id is required"))
		return
	}
	tickIndex, err := strconv.Atoi(r.URL.Query().Get("tick_index"))
	if err != nil {
		writeError(w, apierr.BadInput("tick_index must be an integer"))
		return
	}
	payload, ready, err := s.facade.Tick(simRunID, tickIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickToDTO(payload, ready))
}

func (s *Server) handleDependencyChain(w http.ResponseWriter, r *http.Request) {
	assetID := r.URL.Query().Get("asset_id")
	if assetID == "" {
		writeError(w, apierr.BadInput("asset_id is required"))
		return
	}
	direction := dependency.Direction(r.URL.Query().Get("direction"))
	maxDepth, err := strconv.Atoi(r.URL.Query().Get("max_depth"))
	if err != nil {
		writeError(w, apierr.BadInput("max_depth must be an integer"))
		return
	}
	chain, err := s.facade.Chain(r.Context(), assetID, direction, maxDepth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chainToDTO(chain))
}

func (s *Server) handleDependencyGraph(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		writeError(w, apierr.BadInput("city is required"))
		return
	}
	chain, err := s.facade.Graph(r.Context(), city)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chainToDTO(chain))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an apierr.Kind to an HTTP status and renders
// {error,details,required_anchor} per the error handling design.
func writeError(w http.ResponseWriter, err error) {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		ae = apierr.Wrap(err, "unexpected error")
	}

	status := http.StatusInternalServerError
	switch ae.Kind {
	case apierr.KindBadInput, apierr.KindUnknownScenario, apierr.KindMissingAnchor:
		status = http.StatusBadRequest
	case apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindConflict:
		status = http.StatusConflict
	}

	writeJSON(w, status, errorResponseDTO{
		Error:          string(ae.Kind),
		Details:        ae.Details,
		RequiredAnchor: ae.RequiredAnchor,
	})
}
