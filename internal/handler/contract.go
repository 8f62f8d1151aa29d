package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/service"
)

// ContractHandler serves an employee's agreement: the preview page, the PDF,
// acceptance and field updates.
type ContractHandler struct {
	contracts *service.ContractService
	logger    *zap.Logger
}

func NewContractHandler(contracts *service.ContractService, logger *zap.Logger) *ContractHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractHandler{
		contracts: contracts,
		logger:    logger.With(zap.String("handler", "contract")),
	}
}

// Preview handles GET /api/employees/{id}/contract/preview
func (h *ContractHandler) Preview(w http.ResponseWriter, r *http.Request) {
	page, err := h.contracts.Preview(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Failed to generate contract preview")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// Accept handles POST /api/employees/{id}/contract/accept
func (h *ContractHandler) Accept(w http.ResponseWriter, r *http.Request) {
	acc, err := h.contracts.Accept(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success    bool               `json:"success"`
		Acceptance *domain.Acceptance `json:"acceptance"`
	}{true, acc})
}

// Update handles PUT /api/employees/{id}/contract
func (h *ContractHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	fields := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}

	agreement, err := h.contracts.Update(r.Context(), mux.Vars(r)["id"], fields)
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool                      `json:"success"`
		Contract *domain.ContractAgreement `json:"contract"`
	}{true, agreement})
}

// Download handles GET /api/employees/{id}/contract/download
func (h *ContractHandler) Download(w http.ResponseWriter, r *http.Request) {
	doc, filename, err := h.contracts.Download(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Failed to generate contract PDF")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
