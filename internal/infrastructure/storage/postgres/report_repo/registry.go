package report_repo

import (
	"context"
	"fmt"

	"inspecta/internal/core/numerator"
	"inspecta/internal/domain/reports"
)

// Registry holds one repository per report family and routes number
// lookups to the table that owns the prefix.
type Registry struct {
	repos map[string]*ReportRepo
}

var _ numerator.IdentifierSource = (*Registry)(nil)

// NewRegistry creates repositories for all known families.
func NewRegistry(txm QuerierProvider, codec *FormCodec) *Registry {
	reg := &Registry{repos: make(map[string]*ReportRepo)}
	for _, f := range reports.Families() {
		reg.repos[f.Prefix] = NewReportRepo(txm, f, codec)
	}
	return reg
}

// Repo returns the repository of a family.
func (g *Registry) Repo(prefix string) (*ReportRepo, bool) {
	r, ok := g.repos[prefix]
	return r, ok
}

// ListNumbers implements numerator.IdentifierSource.
func (g *Registry) ListNumbers(ctx context.Context, prefix string, year int) ([]string, error) {
	r, ok := g.repos[prefix]
	if !ok {
		return nil, fmt.Errorf("no report table for prefix %q", prefix)
	}
	return r.ListNumbers(ctx, prefix, year)
}
