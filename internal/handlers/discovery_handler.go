package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/pipeline"
)

// DiscoveryHandler exposes the job pipeline over HTTP: submission per job
// kind, polling, and threshold updates.
type DiscoveryHandler struct {
	gateway *pipeline.Gateway
	logger  arbor.ILogger
}

// NewDiscoveryHandler creates a new discovery handler.
func NewDiscoveryHandler(gateway *pipeline.Gateway, logger arbor.ILogger) *DiscoveryHandler {
	return &DiscoveryHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// SubmitHandler accepts a discovery request and returns the job ID.
// POST /api/discovery
func (h *DiscoveryHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req pipeline.DiscoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	jobID, err := h.gateway.SubmitDiscovery(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// VerifyHandler accepts a standalone email-verification request.
// POST /api/verify
func (h *DiscoveryHandler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req pipeline.VerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	jobID, err := h.gateway.SubmitVerification(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// EnrichHandler accepts a contact-enrichment request.
// POST /api/enrich
func (h *DiscoveryHandler) EnrichHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req pipeline.EnrichmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	jobID, err := h.gateway.SubmitEnrichment(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// DraftHandler accepts a draft-generation request.
// POST /api/drafts
func (h *DiscoveryHandler) DraftHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req pipeline.DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	jobID, err := h.gateway.SubmitDraft(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// JobHandler routes GET (poll) and PATCH (threshold) requests for one job.
// GET   /api/discovery/{jobId}
// PATCH /api/discovery/{jobId}/threshold
func (h *DiscoveryHandler) JobHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/discovery/")
	if rest == "" || rest == r.URL.Path {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if jobID, ok := strings.CutSuffix(rest, "/threshold"); ok {
		h.updateThreshold(w, r, jobID)
		return
	}

	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	h.poll(w, r, rest)
}

func (h *DiscoveryHandler) poll(w http.ResponseWriter, r *http.Request, jobID string) {
	record, err := h.gateway.Poll(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Poll failed")
		WriteError(w, http.StatusInternalServerError, "Failed to read job status")
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

func (h *DiscoveryHandler) updateThreshold(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPatch) {
		return
	}

	var body struct {
		Threshold int `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	record, err := h.gateway.UpdateThreshold(r.Context(), jobID, body.Threshold)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	WriteJSON(w, http.StatusOK, record)
}
