package handler

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/service"
)

const leadNotFound = "Lead not found"

// LeadHandler serves lead CRUD.
type LeadHandler struct {
	leads  *service.LeadService
	logger *zap.Logger
}

func NewLeadHandler(leads *service.LeadService, logger *zap.Logger) *LeadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadHandler{leads: leads, logger: logger.With(zap.String("handler", "lead"))}
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	lead, err := h.leads.Create(r.Context(), body)
	if err != nil {
		writeError(w, h.logger, err, leadNotFound, "Server error")
		return
	}
	writeData(w, http.StatusCreated, lead, "Lead created successfully")
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	leads, err := h.leads.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err, leadNotFound, "Server error")
		return
	}
	writeData(w, http.StatusOK, leads, "")
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leads.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, leadNotFound, "Server error")
		return
	}
	writeData(w, http.StatusOK, lead, "")
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	lead, err := h.leads.Update(r.Context(), mux.Vars(r)["id"], body)
	if err != nil {
		writeError(w, h.logger, err, leadNotFound, "Server error")
		return
	}
	writeData(w, http.StatusOK, lead, "Lead updated successfully")
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.leads.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, err, leadNotFound, "Server error")
		return
	}
	writeMessage(w, http.StatusOK, "Lead deleted successfully")
}
