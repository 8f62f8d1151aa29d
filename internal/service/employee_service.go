package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/observability/metrics"
	"github.com/shineinfo/crm-backend/internal/validation"
)

// Keys a general employee update never writes. Attachments change only
// through uploads and the document delete action; the contract has its own endpoints.
var protectedEmployeeKeys = map[string]bool{
	"_id":                true,
	"employee_id":        true,
	"created_at":         true,
	"updated_at":         true,
	"password":           true,
	"contract_agreement": true,
	"profile_image":      true,
	"aadhar_document":    true,
	"pan_document":       true,
	"documents":          true,
	"work_experience":    true,
}

// EmployeeInput is a create or update request: the employeeData JSON plus
// any uploaded files keyed by form field.
type EmployeeInput struct {
	Data  []byte
	Files map[string][]domain.Upload
}

// EmployeeService coordinates employee persistence with attachment storage.
type EmployeeService struct {
	repo       domain.EmployeeRepository
	storage    domain.ObjectStorage
	reconciler *Reconciler
	logger     *zap.Logger
}

func NewEmployeeService(repo domain.EmployeeRepository, storage domain.ObjectStorage, reconciler *Reconciler, logger *zap.Logger) *EmployeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{
		repo:       repo,
		storage:    storage,
		reconciler: reconciler,
		logger:     logger.With(zap.String("component", "employee_service")),
	}
}

type employeePayload struct {
	Password       string                       `json:"password"`
	WorkExperience []domain.WorkExperienceInput `json:"work_experience"`
}

// Create validates the payload, stores the uploaded files and inserts the
// employee. Uploaded objects are removed again if the insert fails.
func (s *EmployeeService) Create(ctx context.Context, in EmployeeInput) (*domain.Employee, error) {
	fields, err := decodeObject(in.Data)
	if err != nil {
		return nil, err
	}
	if err := validation.Validate(validation.EmployeeCreate, in.Data); err != nil {
		return nil, err
	}

	var payload employeePayload
	if err := json.Unmarshal(in.Data, &payload); err != nil {
		return nil, domain.Invalid("Validation error: %v", err)
	}

	emp := domain.NewEmployee()
	if err := overlay(emp, fields); err != nil {
		return nil, err
	}
	if raw, ok := fields["contract_agreement"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &emp.ContractAgreement); err != nil {
			return nil, domain.Invalid("Validation error: contract_agreement: %v", err)
		}
	}
	emp.ContractAgreement.Acceptance = domain.Acceptance{}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	emp.PasswordHash = string(hash)

	wx := payload.WorkExperience
	if wx == nil {
		wx = []domain.WorkExperienceInput{}
	}
	res := s.reconciler.Reconcile(ctx, ReconcileInput{Files: in.Files, WorkExperience: wx})
	emp.SetAttachments(res.State)

	if err := s.repo.Create(ctx, emp); err != nil {
		s.purge(ctx, res.Uploaded)
		return nil, err
	}
	s.reconciler.DeleteSuperseded(ctx, res)

	metrics.ObserveEmployeeCreated()
	s.logger.Info("employee created", zap.String("id", emp.ID), zap.String("employee_id", emp.EmployeeID))
	return emp, nil
}

// Get returns one employee.
func (s *EmployeeService) Get(ctx context.Context, id string) (*domain.Employee, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all employees ordered by employee_id.
func (s *EmployeeService) List(ctx context.Context) ([]*domain.Employee, error) {
	return s.repo.List(ctx)
}

// Update overlays the submitted fields on the stored employee and reconciles
// attachments. Omitted fields keep their stored values. Replaced objects are
// deleted only after the record is written; a failed or conflicting write
// removes this request's uploads instead and leaves the stored objects alone.
func (s *EmployeeService) Update(ctx context.Context, id string, in EmployeeInput) (*domain.Employee, error) {
	data := in.Data
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	fields, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	if err := validation.Validate(validation.EmployeeUpdate, data); err != nil {
		return nil, err
	}

	emp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var payload employeePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, domain.Invalid("Validation error: %v", err)
	}

	prev := emp.Attachments()
	hash := emp.PasswordHash
	if err := overlay(emp, fields); err != nil {
		return nil, err
	}
	emp.PasswordHash = hash

	passwordChanged := payload.Password != ""
	if passwordChanged {
		h, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		emp.PasswordHash = string(h)
	}

	var submitted []domain.WorkExperienceInput
	if raw, ok := fields["work_experience"]; ok && !isNull(raw) {
		submitted = payload.WorkExperience
		if submitted == nil {
			submitted = []domain.WorkExperienceInput{}
		}
	}

	res := s.reconciler.Reconcile(ctx, ReconcileInput{Prev: prev, Files: in.Files, WorkExperience: submitted})
	emp.SetAttachments(res.State)

	if err := s.repo.Update(ctx, emp, passwordChanged); err != nil {
		s.purge(ctx, res.Uploaded)
		return nil, err
	}
	s.reconciler.DeleteSuperseded(ctx, res)

	s.logger.Info("employee updated", zap.String("id", emp.ID),
		zap.Int("uploads", len(res.Uploaded)), zap.Int("superseded", len(res.Superseded)))
	return emp, nil
}

// Delete removes every stored object of the employee, then the record.
// Storage failures are logged; the objects are leaked rather than blocking the delete.
func (s *EmployeeService) Delete(ctx context.Context, id string) error {
	emp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.purge(ctx, emp.Attachments().All())
	return s.repo.Delete(ctx, id)
}

// DeleteDocument removes one attachment: the stored object first, then the
// reference. A storage failure leaves the reference in place.
func (s *EmployeeService) DeleteDocument(ctx context.Context, id, docType, publicID string) error {
	dt, ok := domain.ParseDocumentType(docType)
	if !ok {
		return domain.Invalid("Invalid document type")
	}

	emp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !emp.HasDocument(dt, publicID) {
		return fmt.Errorf("document %s: %w", publicID, domain.ErrNotFound)
	}

	if err := s.storage.Delete(ctx, publicID); err != nil {
		s.logger.Error("failed to delete stored document",
			zap.String("id", id), zap.String("public_id", publicID), zap.Error(err))
		return fmt.Errorf("delete stored document: %w", err)
	}

	if err := s.repo.RemoveDocument(ctx, id, dt, publicID); err != nil {
		return err
	}
	s.logger.Info("document deleted", zap.String("id", id), zap.String("doc_type", docType))
	return nil
}

// ToggleCurrent flips is_current_employee.
func (s *EmployeeService) ToggleCurrent(ctx context.Context, id string) (*domain.Employee, error) {
	return s.repo.ToggleCurrent(ctx, id)
}

func (s *EmployeeService) purge(ctx context.Context, objects []domain.Attachment) {
	for _, a := range objects {
		if err := s.storage.Delete(ctx, a.PublicID); err != nil {
			s.logger.Warn("failed to delete stored object", zap.String("public_id", a.PublicID), zap.Error(err))
		}
	}
}

// decodeObject parses data as a JSON object.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, domain.Invalid("Invalid JSON format in employeeData")
	}
	return fields, nil
}

// overlay writes the unprotected submitted fields onto emp.
func overlay(emp *domain.Employee, fields map[string]json.RawMessage) error {
	patch := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if !protectedEmployeeKeys[k] {
			patch[k] = v
		}
	}
	if len(patch) == 0 {
		return nil
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode employee patch: %w", err)
	}
	if err := json.Unmarshal(raw, emp); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.Invalid("Validation error: %s: expected %s", typeErr.Field, typeErr.Type)
		}
		return domain.Invalid("Validation error: %v", err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
