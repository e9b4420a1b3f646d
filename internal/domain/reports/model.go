package reports

import (
	"context"
	"encoding/json"
	"strings"

	"inspecta/internal/core/apperror"
	"inspecta/internal/core/entity"
)

// Status is the workflow state of a report.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved:
		return true
	}
	return false
}

// Report is the header of an inspection report. The family-specific form
// content is carried as an opaque JSON payload.
type Report struct {
	entity.Document

	Family        string `db:"family" json:"family"`
	ClientName    string `db:"client_name" json:"clientName"`
	InspectorName string `db:"inspector_name" json:"inspectorName,omitempty"`
	Location      string `db:"location" json:"location,omitempty"`
	Status        Status `db:"status" json:"status"`

	// FormData is the multi-step form payload.
	FormData json.RawMessage `db:"form_data" json:"formData,omitempty"`

	// FormDataZstd holds FormData compressed when it is too large to keep inline.
	// The repository packs and unpacks it; services only see FormData.
	FormDataZstd []byte `db:"form_data_zstd" json:"-"`
}

// NewReport creates a draft report for the family.
func NewReport(family Family, clientName string) *Report {
	return &Report{
		Document:   entity.NewDocument(),
		Family:     family.Prefix,
		ClientName: clientName,
		Status:     StatusDraft,
	}
}

// Validate implements entity.Validatable.
func (r *Report) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if _, ok := FamilyByPrefix(r.Family); !ok {
		return apperror.NewValidation("unknown report family").
			WithDetail("field", "family").
			WithDetail("family", r.Family)
	}
	if strings.TrimSpace(r.ClientName) == "" {
		return apperror.NewValidation("client name is required").
			WithDetail("field", "clientName")
	}
	if !r.Status.IsValid() {
		return apperror.NewValidation("invalid status").
			WithDetail("field", "status").
			WithDetail("status", string(r.Status))
	}
	if len(r.FormData) > 0 && !json.Valid(r.FormData) {
		return apperror.NewValidation("form data must be valid JSON").
			WithDetail("field", "formData")
	}
	return nil
}
