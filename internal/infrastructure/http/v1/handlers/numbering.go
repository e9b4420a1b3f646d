package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"inspecta/internal/core/apperror"
	"inspecta/internal/core/numerator"
	"inspecta/internal/domain/reports"
	"inspecta/internal/infrastructure/http/v1/dto"
)

// CounterReader peeks at the last issued sequence of a namespace.
type CounterReader interface {
	Current(ctx context.Context, cfg numerator.Config, period time.Time) (int64, error)
}

// NumberingHandler exposes read-only numbering state.
type NumberingHandler struct {
	*BaseHandler
	counters CounterReader
	padWidth int
	now      func() time.Time
}

// NewNumberingHandler creates a numbering handler.
func NewNumberingHandler(base *BaseHandler, counters CounterReader, padWidth int) *NumberingHandler {
	return &NumberingHandler{
		BaseHandler: base,
		counters:    counters,
		padWidth:    padWidth,
		now:         time.Now,
	}
}

// Families lists the report families and their prefixes.
// GET /api/v1/numbering
func (h *NumberingHandler) Families(c *gin.Context) {
	fams := reports.Families()
	out := make([]dto.FamilyResponse, 0, len(fams))
	for _, f := range fams {
		out = append(out, dto.FamilyResponse{Prefix: f.Prefix, Name: f.Name, Table: f.Table})
	}
	h.OK(c, out)
}

// Status returns the counter state of a family for a year (current year by default).
// Prefixes are matched exactly.
// GET /api/v1/numbering/:prefix?year=2025
func (h *NumberingHandler) Status(c *gin.Context) {
	prefix := c.Param("prefix")
	family, ok := reports.FamilyByPrefix(prefix)
	if !ok {
		h.Error(c, apperror.NewNotFound("report family", prefix))
		return
	}

	var q dto.NumberingQuery
	if !h.BindQuery(c, &q) {
		return
	}
	year := q.Year
	if year == 0 {
		year = h.now().Year()
	}

	cfg := numerator.Config{Prefix: family.Prefix, PadWidth: h.padWidth}
	period := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	current, err := h.counters.Current(c.Request.Context(), cfg, period)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NumberingStatusResponse{
		Prefix:  family.Prefix,
		Family:  family.Name,
		Year:    year,
		Current: current,
		Next:    cfg.Format(year, current+1),
	})
}
