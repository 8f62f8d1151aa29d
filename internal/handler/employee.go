package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/service"
)

const (
	employeeNotFound = "Employee not found"
	fileLimitMessage = "File size limit has been reached"
)

// EmployeeHandler serves the employee resource.
type EmployeeHandler struct {
	employees *service.EmployeeService
	maxUpload int64
	logger    *zap.Logger
}

// NewEmployeeHandler creates an employee handler. maxUploadBytes bounds the
// whole create or update request body; larger requests get 413.
func NewEmployeeHandler(employees *service.EmployeeService, maxUploadBytes int64, logger *zap.Logger) *EmployeeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeHandler{
		employees: employees,
		maxUpload: maxUploadBytes,
		logger:    logger.With(zap.String("handler", "employee")),
	}
}

// Create handles POST /api/employees
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := readEmployeeInput(w, r, h.maxUpload)
	defer cleanupForm(r)
	if errors.Is(err, errRequestTooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge, fileLimitMessage)
		return
	}
	if errors.Is(err, errMissingEmployeeData) {
		writeMessage(w, http.StatusBadRequest, "Missing employeeData in request")
		return
	}
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}

	emp, err := h.employees.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}
	writeData(w, http.StatusCreated, emp, "Employee created successfully")
}

// List handles GET /api/employees
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	emps, err := h.employees.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}
	writeData(w, http.StatusOK, emps, "")
}

// Get handles GET /api/employees/{id}
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	emp, err := h.employees.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}
	writeData(w, http.StatusOK, emp, "")
}

// Update handles PUT /api/employees/{id}. A request carrying only files
// behaves like an empty update.
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, err := readEmployeeInput(w, r, h.maxUpload)
	defer cleanupForm(r)
	if errors.Is(err, errRequestTooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge, fileLimitMessage)
		return
	}
	if err != nil && !errors.Is(err, errMissingEmployeeData) {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}

	emp, err := h.employees.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}
	writeData(w, http.StatusOK, emp, "Employee updated successfully")
}

// Delete handles DELETE /api/employees/{id}
func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.employees.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}
	writeMessage(w, http.StatusOK, "Employee deleted successfully")
}

// DeleteDocument handles
// DELETE /api/employees/{employeeId}/documents/{docType}/{public_id}
func (h *EmployeeHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.employees.DeleteDocument(r.Context(), vars["employeeId"], vars["docType"], vars["public_id"])
	if err != nil {
		writeError(w, h.logger, err, "Employee or document not found", "Server error")
		return
	}
	writeMessage(w, http.StatusOK, "Document deleted successfully")
}

// ToggleCurrent handles PATCH /api/employees/{id}/toggle-current
func (h *EmployeeHandler) ToggleCurrent(w http.ResponseWriter, r *http.Request) {
	emp, err := h.employees.ToggleCurrent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, employeeNotFound, "Server error")
		return
	}
	writeData(w, http.StatusOK, emp, "is_current_employee toggled successfully")
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
