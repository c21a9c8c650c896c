package view

import (
	"net/url"
	"sort"

	"github.com/Sternrassler/cas-client/pkg/enrich"
	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/Sternrassler/cas-client/pkg/session"
)

// Shared lookup sources.
var (
	officesLookup = LookupSource{Name: "offices", Endpoint: "/offices/", Label: reference.Field("name")}
	groupsLookup  = LookupSource{Name: "groups", Endpoint: "/groups/", Label: reference.Field("name")}
	staffLookup   = LookupSource{Name: "users", Endpoint: "/users/", Label: staffLabel, Exclude: isCitizen}
)

// staffLabel labels users in lookups, enrichment and the members list.
var staffLabel = reference.DisplayLabel

// Shared enrichment targets.
var (
	caseTitle  = enrich.Target{Kind: "case", Field: "case", Endpoint: "/cases/%s/", Label: reference.Field("title")}
	officeName = enrich.Target{Kind: "office", Field: "office", Endpoint: "/offices/%s/", Label: reference.Field("name"), Lookup: "offices"}
)

func userTarget(field string) enrich.Target {
	return enrich.Target{Kind: "user", Field: field, Endpoint: "/users/%s/", Label: staffLabel, Lookup: "users"}
}

func only(key string, value func(session.Session) string) func(session.Session) url.Values {
	return func(s session.Session) url.Values {
		v := value(s)
		if v == "" {
			return nil
		}
		return url.Values{key: {v}}
	}
}

func sessionOffice(s session.Session) string {
	return s.OfficeID
}

func sessionUser(s session.Session) string {
	return s.UserID
}

// Catalog returns the dashboard page definitions keyed by name.
func Catalog() map[string]Definition {
	defs := []Definition{
		{
			Name:     "transfers",
			Title:    "Outgoing transfers",
			Endpoint: "/transfers/",
			Query:    only("from_office_id", sessionOffice),
			Keep: func(s session.Session, rec reference.Record) bool {
				return s.OfficeID == "" || RefEquals(rec, "from_office", s.OfficeID)
			},
			Lookups: []LookupSource{officesLookup},
			Columns: []Column{
				{Name: "Case", Field: "case", Kind: "case"},
				{Name: "From office", Field: "from_office", Lookup: "offices"},
				{Name: "To office", Field: "to_office", Lookup: "offices"},
				{Name: "Reason", Field: "reason"},
				{Name: "Date", Field: "timestamp"},
			},
			Enrich:    []enrich.Target{caseTitle},
			SortField: "timestamp",
			SortDesc:  true,
		},
		{
			Name:     "assignments",
			Title:    "Outgoing assignments",
			Endpoint: "/assignments/",
			Query:    only("from_user_id", sessionUser),
			Keep: func(s session.Session, rec reference.Record) bool {
				return s.UserID == "" || RefEquals(rec, "from_user", s.UserID)
			},
			Lookups: []LookupSource{staffLookup},
			Columns: []Column{
				{Name: "Case", Field: "case", Kind: "case"},
				{Name: "From", Field: "from_user", Lookup: "users", Kind: "user"},
				{Name: "To", Field: "to_user", Lookup: "users", Kind: "user"},
				{Name: "Reason", Field: "reason"},
				{Name: "Date", Field: "timestamp"},
			},
			Enrich:    []enrich.Target{caseTitle, userTarget("from_user"), userTarget("to_user")},
			SortField: "timestamp",
			SortDesc:  true,
		},
		{
			Name:     "my-assigned",
			Title:    "Assigned to me",
			Endpoint: "/assignments/",
			Query:    only("to_user_id", sessionUser),
			Keep: func(s session.Session, rec reference.Record) bool {
				return s.UserID == "" || RefEquals(rec, "to_user", s.UserID)
			},
			Columns: []Column{
				{Name: "Case", Field: "case", Kind: "case"},
				{Name: "From", Field: "from_user", Kind: "user"},
				{Name: "Reason", Field: "reason"},
				{Name: "Date", Field: "timestamp"},
			},
			Enrich:    []enrich.Target{caseTitle, userTarget("from_user")},
			SortField: "timestamp",
			SortDesc:  true,
		},
		{
			Name:     "announcements",
			Title:    "Announcements",
			Endpoint: "/announcements/",
			Lookups:  []LookupSource{officesLookup, groupsLookup},
			Columns: []Column{
				{Name: "Title", Field: "title"},
				{Name: "Content", Field: "content"},
				{Name: "Roles", Field: "recipients_groups", Lookup: "groups", Multi: true},
				{Name: "Offices", Field: "recipients_offices", Lookup: "offices", Multi: true},
				{Name: "Active", Field: "is_active"},
				{Name: "Created", Field: "created_at"},
			},
			SortField: "created_at",
			SortDesc:  true,
		},
		{
			Name:     "offices",
			Title:    "Offices",
			Endpoint: "/offices/",
			Lookups:  []LookupSource{staffLookup},
			Columns: []Column{
				{Name: "Name", Field: "name"},
				{Name: "Representative", Field: "office_representative", Lookup: "users", Kind: "user",
					Label: reference.Field("representative_name")},
				{Name: "Email", Field: "email"},
				{Name: "Phone", Field: "phone_number"},
				{Name: "Address", Field: "address"},
			},
			Enrich:    []enrich.Target{userTarget("office_representative")},
			SortField: "name",
		},
		{
			Name:     "members",
			Title:    "Members",
			Endpoint: "/users/",
			Keep: func(_ session.Session, rec reference.Record) bool {
				return !isCitizen(rec)
			},
			Lookups: []LookupSource{officesLookup},
			Columns: []Column{
				{Name: "Name", Label: staffLabel},
				{Name: "Username", Field: "username"},
				{Name: "Email", Field: "email"},
				{Name: "Roles", Field: "groups", Multi: true},
				{Name: "Office", Field: "office", Lookup: "offices"},
				{Name: "Status", Field: "status"},
			},
			SortField: "username",
		},
		{
			Name:     "cases",
			Title:    "Cases",
			Endpoint: "/cases/",
			Lookups:  []LookupSource{officesLookup},
			Columns: []Column{
				{Name: "Title", Field: "title"},
				{Name: "Status", Field: "status"},
				{Name: "Priority", Field: "priority"},
				{Name: "Category", Field: "category_id"},
				{Name: "Office", Field: "office", Lookup: "offices"},
				{Name: "Citizen", Field: "citizen", Kind: "user"},
				{Name: "Created", Field: "created_at"},
			},
			Enrich: []enrich.Target{
				{Kind: "user", Field: "citizen", Endpoint: "/users/%s/", Label: staffLabel},
			},
			SortField: "created_at",
			SortDesc:  true,
		},
	}

	out := make(map[string]Definition, len(defs)+len(reportDefs))
	for _, d := range reportDefs {
		out[d.Name] = d
	}
	for _, d := range defs {
		out[d.Name] = d
	}
	return out
}

// reportDefs are the report breakdowns whose rows carry references. Rows
// keep their counts; offices and users resolve through the lookup maps.
var reportDefs = []Definition{
	{
		Name:     "reports",
		Title:    "Cases by office",
		Endpoint: "/reports/cases_by_office/",
		Lookups:  []LookupSource{officesLookup},
		Columns: []Column{
			{Name: "Office", Field: "office", Lookup: "offices", Kind: "office"},
			{Name: "Cases", Field: "total"},
		},
		Enrich:    []enrich.Target{officeName},
		SortField: "total",
		SortDesc:  true,
	},
	{
		Name:     "top-assignees",
		Title:    "Top assignees",
		Endpoint: "/reports/top_assignees/",
		Lookups:  []LookupSource{staffLookup},
		Columns: []Column{
			{Name: "Assignee", Field: "user", Lookup: "users", Kind: "user"},
			{Name: "Username", Field: "username"},
			{Name: "Assignments", Field: "total"},
		},
		Enrich:    []enrich.Target{userTarget("user")},
		SortField: "total",
		SortDesc:  true,
	},
}

// Names returns the catalog page names in alphabetical order.
func Names() []string {
	catalog := Catalog()
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
