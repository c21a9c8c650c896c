package casapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/Sternrassler/cas-client/internal/testutil"
	"github.com/Sternrassler/cas-client/pkg/client"
	"github.com/Sternrassler/cas-client/pkg/pagination"
	"github.com/Sternrassler/cas-client/pkg/session"
)

var director = session.Session{Token: "tok", Role: "Director", UserID: "42", OfficeID: "3"}

func newTestService(t *testing.T, mock *testutil.MockAPI) *Service {
	t.Helper()
	c, err := client.New(client.DefaultConfig(mock.URL() + "/api/"))
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}
	return New(c, pagination.DefaultConfig())
}

func lastJSON(t *testing.T, mock *testutil.MockAPI) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(mock.LastBody(), &body); err != nil {
		t.Fatalf("request body is not JSON: %v (%s)", err, mock.LastBody())
	}
	return body
}

func TestParseResource(t *testing.T) {
	tests := []struct {
		in      string
		want    Resource
		wantErr bool
	}{
		{in: "cases", want: Cases},
		{in: " /Offices/ ", want: Offices},
		{in: "announcements", want: Announcements},
		{in: "widgets", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseResource(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseResource(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseResource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResourcePaths(t *testing.T) {
	if got := Cases.Path(); got != "/cases/" {
		t.Errorf("Path() = %q", got)
	}
	if got := Cases.ItemPath("8"); got != "/cases/8/" {
		t.Errorf("ItemPath() = %q", got)
	}
	if got := Announcements.ActionPath("2", "toggle_active"); got != "/announcements/2/toggle_active/" {
		t.Errorf("ActionPath() = %q", got)
	}
}

func TestService_List(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPages("/api/offices/",
		[]map[string]any{{"id": 1, "name": "Kebele 01"}},
		[]map[string]any{{"id": 2, "name": "Kebele 02"}},
	)

	svc := newTestService(t, mock)
	records, err := svc.List(context.Background(), director, Offices, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 || records[0].ID() != "1" || records[1].ID() != "2" {
		t.Errorf("records = %v", records)
	}
}

func TestService_ListQuery(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetJSON("/api/cases/", []map[string]any{{"id": 8}})

	svc := newTestService(t, mock)
	if _, err := svc.List(context.Background(), director, Cases, url.Values{"status": {"pending"}}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if mock.PathCount("/api/cases/?status=pending") != 1 {
		t.Error("query was not sent")
	}
}

func TestService_GetAndDelete(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetJSON("/api/cases/8/", map[string]any{"id": 8, "title": "Water outage"})

	svc := newTestService(t, mock)
	rec, err := svc.Get(context.Background(), director, Cases, "8")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.String("title") != "Water outage" {
		t.Errorf("title = %q", rec.String("title"))
	}

	mock.SetResponse("/api/cases/8/", testutil.NewNoContentResponse())
	if err := svc.Delete(context.Background(), director, Cases, "8"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
}

func TestService_Update(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	methods := make(chan string, 1)
	mock.SetHandler("/api/offices/5/", func(w http.ResponseWriter, r *http.Request) {
		methods <- r.Method
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 5, "name": "Kebele 05"}`))
	})

	svc := newTestService(t, mock)
	rec, err := svc.Update(context.Background(), director, Offices, "5", map[string]string{"name": "Kebele 05"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if method := <-methods; method != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", method)
	}
	if rec.String("name") != "Kebele 05" {
		t.Errorf("record = %v", rec)
	}
}

func TestService_FailurePassesThrough(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/transfers/", testutil.NewErrorResponse(http.StatusBadRequest, "Case is closed."))

	svc := newTestService(t, mock)
	_, err := svc.Transfer(context.Background(), director, TransferRequest{CaseID: "8", ToOfficeID: "4", Reason: "scope"})

	var failure *client.FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v, want *client.FetchFailure", err)
	}
	if failure.StatusCode != http.StatusBadRequest || !strings.Contains(failure.Error(), "Case is closed.") {
		t.Errorf("failure = %v", failure)
	}
}

func TestService_Transfer(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/transfers/", testutil.MockResponse{StatusCode: http.StatusCreated, Body: `{"id": 11, "case_id": 8}`})

	svc := newTestService(t, mock)
	rec, err := svc.Transfer(context.Background(), director, TransferRequest{CaseID: "8", ToOfficeID: "4", Reason: " out of scope "})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if rec.ID() != "11" {
		t.Errorf("ID() = %q, want 11", rec.ID())
	}

	body := lastJSON(t, mock)
	want := map[string]any{"case_id": "8", "from_office_id": "3", "to_office_id": "4", "reason": "out of scope"}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("body[%s] = %v, want %v", k, body[k], v)
		}
	}
}

func TestService_Assign(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/assignments/", testutil.MockResponse{StatusCode: http.StatusCreated, Body: `{"id": 3}`})

	svc := newTestService(t, mock)
	if _, err := svc.Assign(context.Background(), director, AssignRequest{CaseID: "8", ToUserID: "7", Reason: "review"}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	body := lastJSON(t, mock)
	if body["from_user_id"] != "42" || body["to_user_id"] != "7" {
		t.Errorf("body = %v", body)
	}
}

func TestService_Validation(t *testing.T) {
	citizen := session.Session{Token: "tok", Role: "Citizen", UserID: "9"}
	noOffice := session.Session{Token: "tok", Role: "Director", UserID: "42"}
	ctx := context.Background()

	tests := []struct {
		name  string
		field string
		call  func(s *Service) error
	}{
		{name: "transfer without office", field: "office", call: func(s *Service) error {
			_, err := s.Transfer(ctx, noOffice, TransferRequest{CaseID: "8", ToOfficeID: "4", Reason: "x"})
			return err
		}},
		{name: "transfer to same office", field: "to_office_id", call: func(s *Service) error {
			_, err := s.Transfer(ctx, director, TransferRequest{CaseID: "8", ToOfficeID: "3", Reason: "x"})
			return err
		}},
		{name: "transfer without reason", field: "reason", call: func(s *Service) error {
			_, err := s.Transfer(ctx, director, TransferRequest{CaseID: "8", ToOfficeID: "4", Reason: "  "})
			return err
		}},
		{name: "assign to self", field: "to_user_id", call: func(s *Service) error {
			_, err := s.Assign(ctx, director, AssignRequest{CaseID: "8", ToUserID: "42", Reason: "x"})
			return err
		}},
		{name: "assign without case", field: "case_id", call: func(s *Service) error {
			_, err := s.Assign(ctx, director, AssignRequest{ToUserID: "7", Reason: "x"})
			return err
		}},
		{name: "unknown status", field: "status", call: func(s *Service) error {
			_, err := s.ChangeStatus(ctx, director, "8", "archived")
			return err
		}},
		{name: "citizen changes status", field: "role", call: func(s *Service) error {
			_, err := s.ChangeStatus(ctx, citizen, "8", "closed")
			return err
		}},
		{name: "rating too high", field: "rating", call: func(s *Service) error {
			_, err := s.SubmitFeedback(ctx, citizen, "8", 6, "")
			return err
		}},
		{name: "rating zero", field: "rating", call: func(s *Service) error {
			_, err := s.SubmitFeedback(ctx, citizen, "8", 0, "")
			return err
		}},
		{name: "appeal without reason", field: "reason", call: func(s *Service) error {
			_, err := s.SubmitAppeal(ctx, citizen, "8", "4", "")
			return err
		}},
		{name: "path escape", field: "case_id", call: func(s *Service) error {
			return s.MarkSeen(ctx, citizen, "8/../9")
		}},
		{name: "citizen announces", field: "role", call: func(s *Service) error {
			_, err := s.CreateAnnouncement(ctx, citizen, AnnouncementDraft{Title: "t", Content: "c", OfficeIDs: []string{"1"}})
			return err
		}},
		{name: "announcement without audience", field: "recipients", call: func(s *Service) error {
			_, err := s.CreateAnnouncement(ctx, director, AnnouncementDraft{Title: "t", Content: "c"})
			return err
		}},
		{name: "announcement with both audiences", field: "recipients", call: func(s *Service) error {
			_, err := s.CreateAnnouncement(ctx, director, AnnouncementDraft{Title: "t", Content: "c", GroupIDs: []string{"1"}, OfficeIDs: []string{"2"}})
			return err
		}},
		{name: "announcement without title", field: "title", call: func(s *Service) error {
			_, err := s.EditAnnouncement(ctx, director, "2", AnnouncementDraft{Content: "c", GroupIDs: []string{"1"}})
			return err
		}},
		{name: "citizen toggles", field: "role", call: func(s *Service) error {
			_, err := s.ToggleAnnouncement(ctx, citizen, "2")
			return err
		}},
		{name: "case with bad priority", field: "priority", call: func(s *Service) error {
			_, err := s.CreateCase(ctx, citizen, CaseDraft{Title: "t", Description: "d", OfficeID: "1", Priority: "asap"}, nil)
			return err
		}},
		{name: "case without office", field: "office_id", call: func(s *Service) error {
			_, err := s.CreateCase(ctx, citizen, CaseDraft{Title: "t", Description: "d"}, nil)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			svc := newTestService(t, mock)

			err := tt.call(svc)
			var vf *client.ValidationFailure
			if !errors.As(err, &vf) {
				t.Fatalf("err = %v, want *client.ValidationFailure", err)
			}
			if vf.Field != tt.field {
				t.Errorf("Field = %q, want %q", vf.Field, tt.field)
			}
			if mock.RequestCount() != 0 {
				t.Errorf("%d requests sent, want 0", mock.RequestCount())
			}
		})
	}
}

func TestService_CaseActions(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetJSON("/api/cases/8/change_status/", map[string]any{"id": 8, "status": "investigation"})
	mock.SetJSON("/api/cases/8/submit_feedback/", map[string]any{"id": 8})
	mock.SetJSON("/api/cases/8/submit_appeal/", map[string]any{"id": 8})
	mock.SetResponse("/api/cases/8/mark_seen/", testutil.NewNoContentResponse())

	svc := newTestService(t, mock)
	ctx := context.Background()

	rec, err := svc.ChangeStatus(ctx, director, "8", "investigation")
	if err != nil {
		t.Fatalf("ChangeStatus failed: %v", err)
	}
	if rec.String("status") != "investigation" {
		t.Errorf("status = %q", rec.String("status"))
	}

	citizen := session.Session{Token: "tok", Role: "Citizen", UserID: "9"}
	if _, err := svc.SubmitFeedback(ctx, citizen, "8", 5, " thanks "); err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}
	body := lastJSON(t, mock)
	if body["rating"] != float64(5) || body["comment"] != "thanks" {
		t.Errorf("feedback body = %v", body)
	}

	if _, err := svc.SubmitAppeal(ctx, citizen, "8", "4", "no response"); err != nil {
		t.Fatalf("SubmitAppeal failed: %v", err)
	}
	if body := lastJSON(t, mock); body["to_office_id"] != "4" {
		t.Errorf("appeal body = %v", body)
	}

	if err := svc.MarkSeen(ctx, citizen, "8"); err != nil {
		t.Errorf("MarkSeen failed: %v", err)
	}
}

func TestService_Announcements(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/announcements/", testutil.MockResponse{StatusCode: http.StatusCreated, Body: `{"id": 2}`})
	mock.SetJSON("/api/announcements/2/toggle_active/", map[string]any{"id": 2, "is_active": false})

	svc := newTestService(t, mock)
	ctx := context.Background()

	_, err := svc.CreateAnnouncement(ctx, director, AnnouncementDraft{Title: "Water", Content: "Outage", Active: true, OfficeIDs: []string{"5", "7"}})
	if err != nil {
		t.Fatalf("CreateAnnouncement failed: %v", err)
	}
	body := lastJSON(t, mock)
	groups, _ := body["recipients_groups"].([]any)
	offices, _ := body["recipients_offices"].([]any)
	if groups == nil || len(groups) != 0 {
		t.Errorf("recipients_groups = %v, want empty list", body["recipients_groups"])
	}
	if len(offices) != 2 || body["is_active"] != true {
		t.Errorf("body = %v", body)
	}

	rec, err := svc.ToggleAnnouncement(ctx, director, "2")
	if err != nil {
		t.Fatalf("ToggleAnnouncement failed: %v", err)
	}
	if rec.String("is_active") != "false" {
		t.Errorf("is_active = %q", rec.String("is_active"))
	}
}

func TestService_CreateCase(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/cases/", testutil.MockResponse{StatusCode: http.StatusCreated, Body: `{"id": 21, "status": "pending"}`})

	svc := newTestService(t, mock)
	citizen := session.Session{Token: "tok", Role: "Citizen", UserID: "9"}
	rec, err := svc.CreateCase(context.Background(), citizen,
		CaseDraft{Title: "Broken pipe", Description: "Street 4", OfficeID: "5"},
		[]client.File{{Name: "photo.txt", Data: []byte("pixels")}})
	if err != nil {
		t.Fatalf("CreateCase failed: %v", err)
	}
	if rec.ID() != "21" {
		t.Errorf("ID() = %q", rec.ID())
	}

	_, params, err := mime.ParseMediaType(mock.LastRequestHeader().Get("Content-Type"))
	if err != nil {
		t.Fatalf("content type: %v", err)
	}

	var (
		fields   = map[string]string{}
		fileName string
		fileBody string
	)
	mr := multipart.NewReader(bytes.NewReader(mock.LastBody()), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		data, _ := io.ReadAll(part)
		if part.FileName() != "" {
			if part.FormName() != "attachments" {
				t.Errorf("file field = %q, want attachments", part.FormName())
			}
			fileName, fileBody = part.FileName(), string(data)
			continue
		}
		fields[part.FormName()] = string(data)
	}

	want := map[string]string{
		"title": "Broken pipe", "description": "Street 4", "office_id": "5", "citizen_id": "9",
		"category_id": "complaint", "channel": "web", "priority": "medium",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, fields[k], v)
		}
	}
	if fileName != "photo.txt" || fileBody != "pixels" {
		t.Errorf("file = %q (%q)", fileName, fileBody)
	}
}
