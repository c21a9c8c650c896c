// Package casapi provides typed reads and validated write operations on top
// of the CAS client: collection listing through the pagination drainer, case
// actions, transfers, assignments and announcement management.
package casapi

import (
	"fmt"
	"strings"
)

// Resource is a top-level CAS collection.
type Resource string

const (
	Cases         Resource = "cases"
	Users         Resource = "users"
	Offices       Resource = "offices"
	Groups        Resource = "groups"
	Transfers     Resource = "transfers"
	Assignments   Resource = "assignments"
	Announcements Resource = "announcements"
)

// Resources lists every known collection.
var Resources = []Resource{Cases, Users, Offices, Groups, Transfers, Assignments, Announcements}

// ParseResource validates a collection name.
func ParseResource(name string) (Resource, error) {
	name = strings.Trim(strings.ToLower(strings.TrimSpace(name)), "/")
	for _, r := range Resources {
		if string(r) == name {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown resource %q", name)
}

// Path returns the collection endpoint, e.g. "/cases/".
func (r Resource) Path() string {
	return "/" + string(r) + "/"
}

// ItemPath returns the endpoint of one entity, e.g. "/cases/8/".
func (r Resource) ItemPath(id string) string {
	return r.Path() + id + "/"
}

// ActionPath returns the endpoint of an entity action, e.g.
// "/cases/8/change_status/".
func (r Resource) ActionPath(id, action string) string {
	return r.ItemPath(id) + action + "/"
}
