package casapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/cas-client/pkg/client"
	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/Sternrassler/cas-client/pkg/session"
)

// Reports is the read-only group of case statistics. It is not a listable
// collection and is therefore not part of Resources.
const Reports Resource = "reports"

// Report names a breakdown served under /reports/.
type Report string

const (
	CasesByStatus   Report = "cases_by_status"
	CasesByOffice   Report = "cases_by_office"
	CasesByCategory Report = "cases_by_category"
	TopAssignees    Report = "top_assignees"
)

// ReportNames lists every breakdown.
var ReportNames = []Report{CasesByStatus, CasesByOffice, CasesByCategory, TopAssignees}

// ParseReport validates a breakdown name. Dashes are accepted for
// underscores ("top-assignees").
func ParseReport(name string) (Report, error) {
	name = strings.ReplaceAll(strings.Trim(strings.ToLower(strings.TrimSpace(name)), "/"), "-", "_")
	for _, r := range ReportNames {
		if string(r) == name {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown report %q", name)
}

// Path returns the breakdown endpoint, e.g. "/reports/top_assignees/".
func (r Report) Path() string {
	return Reports.Path() + string(r) + "/"
}

// reportDate is the day format of ReportFilter.Start and End.
const reportDate = "2006-01-02"

// ReportFilter narrows the cases a report counts. Empty fields are not sent.
// The server scopes citizens to their own cases regardless of the filter.
type ReportFilter struct {
	// Start and End bound the case creation day, inclusive (YYYY-MM-DD).
	Start string
	End   string

	OfficeID string
	Category string
	Status   string
}

// Validate checks the filter values before any request is sent.
func (f ReportFilter) Validate() error {
	start, err := parseReportDate("start", f.Start)
	if err != nil {
		return err
	}
	end, err := parseReportDate("end", f.End)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return client.Invalid("end", "must not be before start")
	}

	if f.OfficeID != "" {
		if err := requireID("office", f.OfficeID); err != nil {
			return err
		}
	}
	if f.Category != "" {
		if err := oneOf("category", f.Category, caseCategories); err != nil {
			return err
		}
	}
	if f.Status != "" {
		if err := oneOf("status", f.Status, caseStatuses); err != nil {
			return err
		}
	}
	return nil
}

func parseReportDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(reportDate, v)
	if err != nil {
		return time.Time{}, client.Invalid(field, "must be a day like 2025-01-31 (got "+v+")")
	}
	return t, nil
}

// Query returns the filter as query parameters.
func (f ReportFilter) Query() url.Values {
	q := url.Values{}
	set := func(key, v string) {
		if v = strings.TrimSpace(v); v != "" {
			q.Set(key, v)
		}
	}
	set("start", f.Start)
	set("end", f.End)
	set("office", f.OfficeID)
	set("category", f.Category)
	set("status", f.Status)
	return q
}

// endpoint appends the filter to path.
func (f ReportFilter) endpoint(path string) string {
	if q := f.Query(); len(q) > 0 {
		return path + "?" + q.Encode()
	}
	return path
}

// ReportSummary holds the case totals of /reports/summary/. Open counts the
// cases that are neither resolved, rejected nor closed.
type ReportSummary struct {
	TotalCases    int `json:"total_cases"`
	Open          int `json:"open"`
	Pending       int `json:"pending"`
	Investigation int `json:"investigation"`
	Resolved      int `json:"resolved"`
	Rejected      int `json:"rejected"`
	Closed        int `json:"closed"`
}

// Summary fetches the case totals matching f.
func (s *Service) Summary(ctx context.Context, sess session.Session, f ReportFilter) (ReportSummary, error) {
	var out ReportSummary
	if err := f.Validate(); err != nil {
		return out, err
	}

	data, err := s.client.Fetch(ctx, sess, f.endpoint(Reports.Path()+"summary/"))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode report summary: %w", err)
	}
	return out, nil
}

// Report drains one breakdown matching f. Rows keep the server's order.
func (s *Service) Report(ctx context.Context, sess session.Session, r Report, f ReportFilter) ([]reference.Record, error) {
	if _, err := ParseReport(string(r)); err != nil {
		return nil, client.Invalid("report", err.Error())
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	start, err := s.client.Resolve(f.endpoint(r.Path()))
	if err != nil {
		return nil, err
	}
	return s.Drainer(sess).Drain(ctx, start)
}
