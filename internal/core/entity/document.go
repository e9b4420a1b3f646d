package entity

import (
	"context"
	"strings"
	"time"

	"inspecta/internal/core/apperror"
)

// Document is the base type for numbered inspection reports.
type Document struct {
	BaseDocument

	// ReportNo is PREFIX-YEAR-NNNN; allocated on first save when empty, then immutable.
	ReportNo string `db:"report_no" json:"reportNo"`

	// InspectionDate is the day the inspection took place.
	InspectionDate time.Time `db:"inspection_date" json:"inspectionDate"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument() Document {
	return Document{
		BaseDocument:   NewBaseDocument(),
		InspectionDate: time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.InspectionDate.IsZero() {
		return apperror.NewValidation("inspection date is required").
			WithDetail("field", "inspectionDate")
	}
	if d.ReportNo != "" && strings.TrimSpace(d.ReportNo) == "" {
		return apperror.NewValidation("report number must not be blank").
			WithDetail("field", "reportNo")
	}
	return nil
}

// HasNumber reports whether a number was supplied or already allocated.
func (d *Document) HasNumber() bool {
	return d.ReportNo != ""
}
