package service

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shineinfo/crm-backend/internal/domain"
)

// Upload field names accepted on employee create and update.
const (
	FieldProfileImage     = "profile_image"
	FieldAadharDocument   = "aadhar_document"
	FieldPanDocument      = "pan_document"
	FieldResume           = "resume"
	FieldOfferLetter      = "offer_letter"
	FieldJoiningLetter    = "joining_letter"
	FieldOtherDocs        = "other_docs"
	experienceLetterField = "experience_letter_"
)

// ExperienceLetterField names the upload slot for the i-th submitted entry.
func ExperienceLetterField(i int) string {
	return experienceLetterField + strconv.Itoa(i)
}

// singletonSlots maps each single-file field to its place in the state.
var singletonSlots = []struct {
	field string
	slot  func(*domain.AttachmentState) **domain.Attachment
}{
	{FieldProfileImage, func(s *domain.AttachmentState) **domain.Attachment { return &s.ProfileImage }},
	{FieldAadharDocument, func(s *domain.AttachmentState) **domain.Attachment { return &s.AadharDocument }},
	{FieldPanDocument, func(s *domain.AttachmentState) **domain.Attachment { return &s.PanDocument }},
	{FieldResume, func(s *domain.AttachmentState) **domain.Attachment { return &s.Documents.Resume }},
	{FieldOfferLetter, func(s *domain.AttachmentState) **domain.Attachment { return &s.Documents.OfferLetter }},
	{FieldJoiningLetter, func(s *domain.AttachmentState) **domain.Attachment { return &s.Documents.JoiningLetter }},
}

// ReconcileInput is one create or update request's view of the attachments.
type ReconcileInput struct {
	Prev  domain.AttachmentState
	Files map[string][]domain.Upload
	// WorkExperience is the submitted entry list. When nil the stored
	// entries are kept and letter uploads apply to them by index.
	WorkExperience []domain.WorkExperienceInput
}

// ReconcileResult is the state to persist.
type ReconcileResult struct {
	State domain.AttachmentState
	// Uploaded lists objects stored during this call, for cleanup when the
	// record cannot be persisted.
	Uploaded []domain.Attachment
	// Superseded lists stored objects State no longer references. They are
	// deleted by DeleteSuperseded once State has been persisted.
	Superseded []domain.Attachment
}

// Reconciler merges freshly uploaded files into an employee's attachment
// state and removes superseded stored objects after the caller persists it.
type Reconciler struct {
	storage     domain.ObjectStorage
	folder      string
	concurrency int
	logger      *zap.Logger
}

func NewReconciler(storage domain.ObjectStorage, folder string, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		storage:     storage,
		folder:      folder,
		concurrency: 4,
		logger:      logger.With(zap.String("component", "reconciler")),
	}
}

type uploadJob struct {
	field  string
	file   domain.Upload
	result *domain.Attachment
}

// Reconcile uploads every accepted file concurrently, then applies the
// per-field rules. It deletes nothing: objects the new state drops are
// returned in Superseded. Upload failures are logged and leave the field unchanged.
func (r *Reconciler) Reconcile(ctx context.Context, in ReconcileInput) *ReconcileResult {
	entryCount := len(in.Prev.WorkExperience)
	if in.WorkExperience != nil {
		entryCount = len(in.WorkExperience)
	}

	jobs := r.planUploads(in.Files, entryCount)
	r.runUploads(ctx, jobs)

	byField := map[string][]*domain.Attachment{}
	res := &ReconcileResult{}
	for _, j := range jobs {
		if j.result == nil {
			continue
		}
		byField[j.field] = append(byField[j.field], j.result)
		res.Uploaded = append(res.Uploaded, *j.result)
	}

	state := domain.AttachmentState{
		ProfileImage:   in.Prev.ProfileImage,
		AadharDocument: in.Prev.AadharDocument,
		PanDocument:    in.Prev.PanDocument,
		Documents: domain.Documents{
			Resume:        in.Prev.Documents.Resume,
			OfferLetter:   in.Prev.Documents.OfferLetter,
			JoiningLetter: in.Prev.Documents.JoiningLetter,
			OtherDocs:     append([]domain.Attachment{}, in.Prev.Documents.OtherDocs...),
		},
	}

	for _, s := range singletonSlots {
		uploaded := byField[s.field]
		if len(uploaded) == 0 {
			continue
		}
		slot := s.slot(&state)
		if old := *slot; old != nil && old.PublicID != "" {
			res.Superseded = append(res.Superseded, *old)
		}
		*slot = uploaded[0]
	}

	for _, a := range byField[FieldOtherDocs] {
		state.Documents.OtherDocs = append(state.Documents.OtherDocs, *a)
	}

	var dropped []domain.Attachment
	state.WorkExperience, dropped = r.reconcileWorkExperience(in, byField)
	res.Superseded = append(res.Superseded, dropped...)

	res.State = state
	return res
}

// DeleteSuperseded removes the objects res dropped. Call it only after
// res.State is persisted; a failed delete leaves an unreferenced object behind
// and is logged.
func (r *Reconciler) DeleteSuperseded(ctx context.Context, res *ReconcileResult) {
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, a := range res.Superseded {
		g.Go(func() error {
			if err := r.storage.Delete(ctx, a.PublicID); err != nil {
				r.logger.Warn("failed to delete superseded object", zap.String("public_id", a.PublicID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// planUploads picks the files to store. Singleton fields take the first
// file; letter slots outside the entry list are skipped.
func (r *Reconciler) planUploads(files map[string][]domain.Upload, entryCount int) []*uploadJob {
	fields := make([]string, 0, len(files))
	for f := range files {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var jobs []*uploadJob
	for _, field := range fields {
		list := files[field]
		if len(list) == 0 {
			continue
		}
		switch {
		case field == FieldOtherDocs:
			for _, f := range list {
				jobs = append(jobs, &uploadJob{field: field, file: f})
			}
		case isSingletonField(field):
			if len(list) > 1 {
				r.logger.Warn("extra files ignored for single-file field",
					zap.String("field", field), zap.Int("received", len(list)))
			}
			jobs = append(jobs, &uploadJob{field: field, file: list[0]})
		case strings.HasPrefix(field, experienceLetterField):
			idx, err := strconv.Atoi(strings.TrimPrefix(field, experienceLetterField))
			if err != nil || idx < 0 || idx >= entryCount {
				r.logger.Warn("experience letter has no matching entry", zap.String("field", field))
				continue
			}
			jobs = append(jobs, &uploadJob{field: field, file: list[0]})
		default:
			r.logger.Warn("unknown upload field ignored", zap.String("field", field))
		}
	}
	return jobs
}

func (r *Reconciler) runUploads(ctx context.Context, jobs []*uploadJob) {
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			att, err := r.storage.Upload(ctx, job.file, r.folder)
			if err != nil {
				r.logger.Error("upload failed, field left unchanged",
					zap.String("field", job.field), zap.String("filename", job.file.Filename), zap.Error(err))
				return nil
			}
			if !att.Valid() {
				r.logger.Error("upload returned incomplete reference", zap.String("field", job.field))
				return nil
			}
			job.result = att
			return nil
		})
	}
	_ = g.Wait()
}

// reconcileWorkExperience matches submitted entries to stored ones by _id,
// falling back to position only for stored entries that never got an id.
func (r *Reconciler) reconcileWorkExperience(in ReconcileInput, uploads map[string][]*domain.Attachment) ([]domain.WorkExperience, []domain.Attachment) {
	prev := in.Prev.WorkExperience

	if in.WorkExperience == nil {
		out := append([]domain.WorkExperience{}, prev...)
		var dropped []domain.Attachment
		for i := range out {
			if out[i].ID == "" {
				out[i].ID = uuid.NewString()
			}
			letter := uploads[ExperienceLetterField(i)]
			if len(letter) == 0 {
				continue
			}
			if old := out[i].ExperienceLetter; old != nil && old.PublicID != "" {
				dropped = append(dropped, *old)
			}
			out[i].ExperienceLetter = letter[0]
		}
		return out, dropped
	}

	byID := make(map[string]int, len(prev))
	for i, w := range prev {
		if w.ID != "" {
			byID[w.ID] = i
		}
	}
	matched := make([]bool, len(prev))

	out := make([]domain.WorkExperience, len(in.WorkExperience))
	var dropped []domain.Attachment
	for i, entry := range in.WorkExperience {
		var prior *domain.WorkExperience
		if entry.ID != "" {
			if j, ok := byID[entry.ID]; ok && !matched[j] {
				prior, matched[j] = &prev[j], true
			}
		} else if i < len(prev) && prev[i].ID == "" && !matched[i] {
			prior, matched[i] = &prev[i], true
		}

		w := domain.WorkExperience{
			CompanyName: entry.CompanyName,
			Role:        entry.Role,
			Duration:    entry.Duration,
		}
		if prior != nil && prior.ID != "" {
			w.ID = prior.ID
		} else {
			w.ID = uuid.NewString()
		}
		var priorLetter *domain.Attachment
		if prior != nil {
			priorLetter = prior.ExperienceLetter
		}

		field := ExperienceLetterField(i)
		switch {
		case len(uploads[field]) > 0:
			if priorLetter != nil && priorLetter.PublicID != "" {
				dropped = append(dropped, *priorLetter)
			}
			w.ExperienceLetter = uploads[field][0]
		case entry.Letter() == domain.LetterCleared:
			if priorLetter != nil && priorLetter.PublicID != "" {
				dropped = append(dropped, *priorLetter)
			}
			w.ExperienceLetter = nil
		default:
			w.ExperienceLetter = priorLetter
		}
		out[i] = w
	}

	// Letters of entries the client dropped are no longer referenced.
	for j, w := range prev {
		if !matched[j] && w.ExperienceLetter != nil && w.ExperienceLetter.PublicID != "" {
			dropped = append(dropped, *w.ExperienceLetter)
		}
	}
	return out, dropped
}

func isSingletonField(field string) bool {
	for _, s := range singletonSlots {
		if s.field == field {
			return true
		}
	}
	return false
}
