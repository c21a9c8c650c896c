package casapi

import (
	"context"
	"strconv"
	"strings"

	"github.com/Sternrassler/cas-client/pkg/client"
	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/Sternrassler/cas-client/pkg/session"
)

// Case statuses accepted by change_status.
var caseStatuses = []string{"pending", "investigation", "resolved", "rejected", "closed"}

// Case classification values.
var (
	caseCategories = []string{"complaint", "appeal", "other"}
	caseChannels   = []string{"web", "walk_in", "phone"}
	casePriorities = []string{"low", "medium", "high", "urgent"}
)

// TransferRequest moves a case from the session office to another office.
type TransferRequest struct {
	CaseID     string
	ToOfficeID string
	Reason     string
}

// Transfer records a case transfer from the session's office.
func (s *Service) Transfer(ctx context.Context, sess session.Session, req TransferRequest) (reference.Record, error) {
	if sess.OfficeID == "" {
		return nil, client.Invalid("office", "session has no office")
	}
	if err := requireID("case_id", req.CaseID); err != nil {
		return nil, err
	}
	if err := requireID("to_office_id", req.ToOfficeID); err != nil {
		return nil, err
	}
	if req.ToOfficeID == sess.OfficeID {
		return nil, client.Invalid("to_office_id", "must differ from the current office")
	}
	if err := requireText("reason", req.Reason); err != nil {
		return nil, err
	}

	body := map[string]string{
		"case_id":        req.CaseID,
		"from_office_id": sess.OfficeID,
		"to_office_id":   req.ToOfficeID,
		"reason":         strings.TrimSpace(req.Reason),
	}
	return s.send(ctx, sess, "transfer", "POST", Transfers.Path(), body)
}

// AssignRequest hands a case from the session user to another user.
type AssignRequest struct {
	CaseID   string
	ToUserID string
	Reason   string
}

// Assign records a case assignment from the session's user.
func (s *Service) Assign(ctx context.Context, sess session.Session, req AssignRequest) (reference.Record, error) {
	if sess.UserID == "" {
		return nil, client.Invalid("user", "session has no user")
	}
	if err := requireID("case_id", req.CaseID); err != nil {
		return nil, err
	}
	if err := requireID("to_user_id", req.ToUserID); err != nil {
		return nil, err
	}
	if req.ToUserID == sess.UserID {
		return nil, client.Invalid("to_user_id", "cannot assign a case to yourself")
	}
	if err := requireText("reason", req.Reason); err != nil {
		return nil, err
	}

	body := map[string]string{
		"case_id":      req.CaseID,
		"from_user_id": sess.UserID,
		"to_user_id":   req.ToUserID,
		"reason":       strings.TrimSpace(req.Reason),
	}
	return s.send(ctx, sess, "assign", "POST", Assignments.Path(), body)
}

// ChangeStatus moves a case to another status. Citizens may not change status.
func (s *Service) ChangeStatus(ctx context.Context, sess session.Session, caseID, status string) (reference.Record, error) {
	if sess.IsCitizen() {
		return nil, client.Invalid("role", "citizens cannot change case status")
	}
	if err := requireID("case_id", caseID); err != nil {
		return nil, err
	}
	if err := oneOf("status", status, caseStatuses); err != nil {
		return nil, err
	}

	body := map[string]string{"status": status}
	return s.send(ctx, sess, "change_status", "POST", Cases.ActionPath(caseID, "change_status"), body)
}

// MarkSeen flags a case as seen by the session user.
func (s *Service) MarkSeen(ctx context.Context, sess session.Session, caseID string) error {
	if err := requireID("case_id", caseID); err != nil {
		return err
	}
	_, err := s.send(ctx, sess, "mark_seen", "POST", Cases.ActionPath(caseID, "mark_seen"), nil)
	return err
}

// SubmitFeedback rates a closed case from 1 to 5.
func (s *Service) SubmitFeedback(ctx context.Context, sess session.Session, caseID string, rating int, comment string) (reference.Record, error) {
	if err := requireID("case_id", caseID); err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, client.Invalid("rating", "must be between 1 and 5 (got "+strconv.Itoa(rating)+")")
	}

	body := map[string]any{"rating": rating, "comment": strings.TrimSpace(comment)}
	return s.send(ctx, sess, "submit_feedback", "POST", Cases.ActionPath(caseID, "submit_feedback"), body)
}

// SubmitAppeal escalates a case to another office.
func (s *Service) SubmitAppeal(ctx context.Context, sess session.Session, caseID, toOfficeID, reason string) (reference.Record, error) {
	if err := requireID("case_id", caseID); err != nil {
		return nil, err
	}
	if err := requireID("to_office_id", toOfficeID); err != nil {
		return nil, err
	}
	if err := requireText("reason", reason); err != nil {
		return nil, err
	}

	body := map[string]string{"to_office_id": toOfficeID, "reason": strings.TrimSpace(reason)}
	return s.send(ctx, sess, "submit_appeal", "POST", Cases.ActionPath(caseID, "submit_appeal"), body)
}

// AnnouncementDraft is the editable part of an announcement. The audience is
// either a set of role groups or a set of offices, never both.
type AnnouncementDraft struct {
	Title   string
	Content string
	Active  bool

	// GroupIDs and OfficeIDs select the recipients.
	GroupIDs  []string
	OfficeIDs []string
}

func (d AnnouncementDraft) validate() error {
	if err := requireText("title", d.Title); err != nil {
		return err
	}
	if err := requireText("content", d.Content); err != nil {
		return err
	}
	switch {
	case len(d.GroupIDs) == 0 && len(d.OfficeIDs) == 0:
		return client.Invalid("recipients", "select roles or offices")
	case len(d.GroupIDs) > 0 && len(d.OfficeIDs) > 0:
		return client.Invalid("recipients", "select either roles or offices, not both")
	}
	return nil
}

func (d AnnouncementDraft) body() map[string]any {
	groups := d.GroupIDs
	if groups == nil {
		groups = []string{}
	}
	offices := d.OfficeIDs
	if offices == nil {
		offices = []string{}
	}
	return map[string]any{
		"title":              strings.TrimSpace(d.Title),
		"content":            strings.TrimSpace(d.Content),
		"is_active":          d.Active,
		"recipients_groups":  groups,
		"recipients_offices": offices,
	}
}

// CreateAnnouncement publishes an announcement. Only manager roles may.
func (s *Service) CreateAnnouncement(ctx context.Context, sess session.Session, draft AnnouncementDraft) (reference.Record, error) {
	if !sess.CanManageAnnouncements() {
		return nil, client.Invalid("role", "role "+strconv.Quote(sess.Role)+" cannot manage announcements")
	}
	if err := draft.validate(); err != nil {
		return nil, err
	}
	return s.send(ctx, sess, "create_announcement", "POST", Announcements.Path(), draft.body())
}

// EditAnnouncement replaces the editable fields of an announcement.
func (s *Service) EditAnnouncement(ctx context.Context, sess session.Session, id string, draft AnnouncementDraft) (reference.Record, error) {
	if !sess.CanManageAnnouncements() {
		return nil, client.Invalid("role", "role "+strconv.Quote(sess.Role)+" cannot manage announcements")
	}
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	if err := draft.validate(); err != nil {
		return nil, err
	}
	return s.send(ctx, sess, "edit_announcement", "PATCH", Announcements.ItemPath(id), draft.body())
}

// ToggleAnnouncement flips the active flag of an announcement.
func (s *Service) ToggleAnnouncement(ctx context.Context, sess session.Session, id string) (reference.Record, error) {
	if !sess.CanManageAnnouncements() {
		return nil, client.Invalid("role", "role "+strconv.Quote(sess.Role)+" cannot manage announcements")
	}
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.send(ctx, sess, "toggle_announcement", "POST", Announcements.ActionPath(id, "toggle_active"), nil)
}

// CaseDraft is a new case filed on behalf of a citizen.
type CaseDraft struct {
	Title       string
	Description string
	OfficeID    string
	Category    string
	Channel     string
	Priority    string

	// CitizenID defaults to the session user.
	CitizenID string
}

// CreateCase files a case with optional attachments as multipart form data.
func (s *Service) CreateCase(ctx context.Context, sess session.Session, draft CaseDraft, attachments []client.File) (reference.Record, error) {
	if err := requireText("title", draft.Title); err != nil {
		return nil, err
	}
	if err := requireText("description", draft.Description); err != nil {
		return nil, err
	}
	if err := requireID("office_id", draft.OfficeID); err != nil {
		return nil, err
	}

	category := orDefault(draft.Category, "complaint")
	channel := orDefault(draft.Channel, "web")
	priority := orDefault(draft.Priority, "medium")
	if err := oneOf("category_id", category, caseCategories); err != nil {
		return nil, err
	}
	if err := oneOf("channel", channel, caseChannels); err != nil {
		return nil, err
	}
	if err := oneOf("priority", priority, casePriorities); err != nil {
		return nil, err
	}

	citizen := orDefault(draft.CitizenID, sess.UserID)
	if citizen == "" {
		return nil, client.Invalid("citizen_id", "is required")
	}

	files := make([]client.File, len(attachments))
	for i, f := range attachments {
		if f.Name == "" {
			return nil, client.Invalid("attachments", "file "+strconv.Itoa(i)+" has no name")
		}
		f.Field = "attachments"
		files[i] = f
	}

	form := client.Form{
		Fields: map[string]string{
			"title":       strings.TrimSpace(draft.Title),
			"description": strings.TrimSpace(draft.Description),
			"office_id":   draft.OfficeID,
			"citizen_id":  citizen,
			"category_id": category,
			"channel":     channel,
			"priority":    priority,
		},
		Files: files,
	}
	return s.sendForm(ctx, sess, "create_case", Cases.Path(), form)
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return client.Invalid(field, "is required")
	}
	return nil
}

func oneOf(field, v string, allowed []string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return client.Invalid(field, "must be one of "+strings.Join(allowed, ", ")+" (got "+strconv.Quote(v)+")")
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
