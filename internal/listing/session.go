package listing

import (
	"sync"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// Mode is the editing mode of an EditingSession.
type Mode string

const (
	ModeClosed Mode = "closed"
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// EditorState is a snapshot of an EditingSession.
type EditorState struct {
	Mode       Mode          `json:"mode"`
	Submitting bool          `json:"submitting"`
	TargetID   string        `json:"targetId,omitempty"`
	Draft      domain.Fields `json:"draft"`
}

// Submission is the draft handed to the coordinator by BeginSubmit.
type Submission struct {
	Mode     Mode
	TargetID string
	Draft    domain.Fields
}

// EditingSession holds the create/edit form state of one resource view,
// independently of the list.
//
// closed -> create|edit -> submitting -> closed on success, or back to
// create|edit with the draft retained on failure.
type EditingSession struct {
	res domain.Resource

	mu         sync.Mutex
	mode       Mode
	submitting bool
	targetID   string
	draft      domain.Fields
}

// NewEditingSession returns a closed session for res.
func NewEditingSession(res domain.Resource) *EditingSession {
	return &EditingSession{res: res, mode: ModeClosed}
}

// StartCreate opens the session in create mode with the resource defaults
// as the draft.
func (s *EditingSession) StartCreate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return errSubmitting()
	}
	s.mode = ModeCreate
	s.targetID = ""
	s.draft = s.res.Defaults.Clone()
	return nil
}

// StartEdit opens the session in edit mode for rec. The draft is a shallow
// copy of rec's editable fields.
func (s *EditingSession) StartEdit(rec domain.Record) error {
	id := rec.ID()
	if id == "" {
		return domain.NewAppError(domain.CodeValidation, "record has no id", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return errSubmitting()
	}
	s.mode = ModeEdit
	s.targetID = id
	s.draft = s.res.EditableFields(rec)
	return nil
}

// UpdateDraftField merges one value into the draft. No validation beyond
// rejecting server-managed fields is done here.
func (s *EditingSession) UpdateDraftField(key string, value any) error {
	return s.UpdateDraft(domain.Fields{key: value})
}

// UpdateDraft merges fields into the draft.
func (s *EditingSession) UpdateDraft(fields domain.Fields) error {
	for k := range fields {
		if k == "" {
			return domain.NewAppError(domain.CodeValidation, "field name is required", nil)
		}
		if s.res.IsServerManaged(k) {
			return domain.NewAppError(domain.CodeValidation, s.res.FieldLabel(k)+" is managed by the server", nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeClosed {
		return domain.NewAppError(domain.CodeValidation, "no "+lower(s.res.Label)+" is being edited", nil)
	}
	if s.submitting {
		return errSubmitting()
	}
	if s.draft == nil {
		s.draft = domain.Fields{}
	}
	for k, v := range fields {
		s.draft[k] = v
	}
	return nil
}

// Clear closes the session and drops the draft.
func (s *EditingSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeClosed
	s.submitting = false
	s.targetID = ""
	s.draft = nil
}

// BeginSubmit enters the submitting phase and returns a copy of the draft.
func (s *EditingSession) BeginSubmit() (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeClosed {
		return Submission{}, domain.NewAppError(domain.CodeValidation, "no "+lower(s.res.Label)+" is being edited", nil)
	}
	if s.submitting {
		return Submission{}, errSubmitting()
	}
	s.submitting = true
	return Submission{Mode: s.mode, TargetID: s.targetID, Draft: s.draft.Clone()}, nil
}

// EndSubmit leaves the submitting phase. On success the session closes;
// otherwise it returns to its mode with the draft intact.
func (s *EditingSession) EndSubmit(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.submitting {
		return
	}
	s.submitting = false
	if ok {
		s.mode = ModeClosed
		s.targetID = ""
		s.draft = nil
	}
}

// Snapshot returns the current state with a copy of the draft.
func (s *EditingSession) Snapshot() EditorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EditorState{
		Mode:       s.mode,
		Submitting: s.submitting,
		TargetID:   s.targetID,
		Draft:      s.draft.Clone(),
	}
}

// clearIfEditing closes the session when it is editing id.
func (s *EditingSession) clearIfEditing(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeEdit && s.targetID == id {
		s.mode = ModeClosed
		s.submitting = false
		s.targetID = ""
		s.draft = nil
	}
}

func errSubmitting() error {
	return domain.NewAppError(domain.CodeConflict, "a submission is already in progress", nil)
}
