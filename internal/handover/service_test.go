package handover

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
	"github.com/zebramusic/cloackroom-app-sub001/internal/repository"
)

type fixture struct {
	svc   *Service
	repos *repository.Repositories
	now   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{repos: repository.NewMemoryRepositories(), now: 1500}
	f.svc = NewService(f.repos.Handovers, f.repos.Events, nil, nil, func() time.Time { return time.UnixMilli(f.now) })

	ctx := context.Background()
	_ = f.repos.Events.Create(ctx, &model.Event{ID: "ev_1", Name: "Gala", StartsAt: 1000, EndsAt: 2000})
	_ = f.repos.Events.Create(ctx, &model.Event{ID: "ev_2", Name: "Other", StartsAt: 1000, EndsAt: 2000})
	return f
}

func staffFor(eventID string) *model.Staff {
	return &model.Staff{
		Account:           model.Account{ID: "st_1", FullName: "Sam"},
		IsAuthorized:      true,
		AuthorizedEventID: eventID,
	}
}

func admin() *model.Admin {
	return &model.Admin{Account: model.Account{ID: "ad_1", FullName: "Ada"}}
}

func validInput() CreateInput {
	return CreateInput{TicketCode: "A-001", ClientName: "Client", Notes: "black coat"}
}

func codeOf(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func TestCreate_StaffDuringActiveEvent(t *testing.T) {
	f := newFixture(t)

	h, err := f.svc.Create(context.Background(), staffFor("ev_1"), validInput())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if h.EventID != "ev_1" || h.StaffID != "st_1" || h.StaffName != "Sam" || h.CreatedAt != 1500 {
		t.Errorf("created handover = %+v", h)
	}
}

// TestCreate_StaffEventWindow はイベント稼働時間の境界で作成可否が切り替わることを検証する。
func TestCreate_StaffEventWindow(t *testing.T) {
	tests := []struct {
		now  int64
		code string
	}{
		{999, model.ErrCodeEventNotActive},
		{1000, ""},
		{2000, ""},
		{2001, model.ErrCodeEventNotActive},
	}
	for _, tt := range tests {
		f := newFixture(t)
		f.now = tt.now
		_, err := f.svc.Create(context.Background(), staffFor("ev_1"), validInput())
		if got := codeOf(err); got != tt.code {
			t.Errorf("now=%d: error code = %q, want %q (err=%v)", tt.now, got, tt.code, err)
		}
	}
}

func TestCreate_StaffGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unauthorized := staffFor("ev_1")
	unauthorized.IsAuthorized = false

	tests := []struct {
		name  string
		staff *model.Staff
		in    CreateInput
		code  string
	}{
		{"not authorized", unauthorized, validInput(), model.ErrCodeStaffNotAuthorized},
		{"no event", staffFor(""), validInput(), model.ErrCodeNoAuthorizedEvent},
		{"missing event denies", staffFor("deleted"), validInput(), model.ErrCodeNoAuthorizedEvent},
		{"other event", staffFor("ev_1"), CreateInput{TicketCode: "A", ClientName: "C", EventID: "ev_2"}, model.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.staff, tt.in)
			if got := codeOf(err); got != tt.code {
				t.Errorf("error code = %q, want %q", got, tt.code)
			}
		})
	}

	list, _ := f.repos.Handovers.List(ctx, model.HandoverFilter{})
	if len(list) != 0 {
		t.Errorf("rejected handovers were persisted: %d", len(list))
	}
}

func TestCreate_AdminIsNotGated(t *testing.T) {
	f := newFixture(t)
	f.now = 99_999

	h, err := f.svc.Create(context.Background(), admin(), CreateInput{TicketCode: "Z", ClientName: "C", EventID: "ev_2"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if h.EventID != "ev_2" {
		t.Errorf("eventId = %q, want ev_2", h.EventID)
	}

	_, err = f.svc.Create(context.Background(), admin(), CreateInput{TicketCode: "Z", ClientName: "C", EventID: "ghost"})
	if got := codeOf(err); got != model.ErrCodeEventNotFound {
		t.Errorf("unknown event code = %q, want %s", got, model.ErrCodeEventNotFound)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing ticket", CreateInput{ClientName: "C"}},
		{"missing client", CreateInput{TicketCode: "T"}},
		{"bad photo url", CreateInput{TicketCode: "T", ClientName: "C", PhotoURLs: []string{"javascript:alert(1)"}}},
		{"bad signature url", CreateInput{TicketCode: "T", ClientName: "C", SignatureURL: "file:///etc/passwd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), admin(), tt.in)
			if got := codeOf(err); got != model.ErrCodeValidation {
				t.Errorf("error code = %q, want %s", got, model.ErrCodeValidation)
			}
		})
	}
}

// TestCreate_FieldLengths は保存先カラムに収まらない値が検証エラーになり、
// 上限ちょうどの値は文字数で数えて受け付けられることを検証する。
func TestCreate_FieldLengths(t *testing.T) {
	f := newFixture(t)
	longURL := "https://cdn.example.com/" + strings.Repeat("a", maxFieldSize)

	rejected := []struct {
		name string
		in   CreateInput
	}{
		{"ticket code", CreateInput{TicketCode: strings.Repeat("T", maxTicketCodeLength+1), ClientName: "C"}},
		{"client name", CreateInput{TicketCode: "T", ClientName: strings.Repeat("C", maxClientNameLength+1)}},
		{"client phone", CreateInput{TicketCode: "T", ClientName: "C", ClientPhone: strings.Repeat("1", maxClientPhoneLength+1)}},
		{"notes", CreateInput{TicketCode: "T", ClientName: "C", Notes: strings.Repeat("n", maxFieldSize+1)}},
		{"photo url", CreateInput{TicketCode: "T", ClientName: "C", PhotoURLs: []string{longURL}}},
		{"signature url", CreateInput{TicketCode: "T", ClientName: "C", SignatureURL: longURL}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), admin(), tt.in)
			if got := codeOf(err); got != model.ErrCodeValidation {
				t.Errorf("error code = %q, want %s", got, model.ErrCodeValidation)
			}
		})
	}

	// マルチバイト文字はバイト数ではなく文字数で数える
	h, err := f.svc.Create(context.Background(), admin(), CreateInput{
		TicketCode: strings.Repeat("券", maxTicketCodeLength),
		ClientName: strings.Repeat("客", maxClientNameLength),
		Notes:      strings.Repeat("傘", maxFieldSize),
	})
	if err != nil {
		t.Fatalf("Create at the limit returned error: %v", err)
	}
	if h.Notes != strings.Repeat("傘", maxFieldSize) {
		t.Error("notes at the limit should be stored unchanged")
	}
}

func TestList_StaffScopedToAssignedEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.svc.Create(ctx, admin(), CreateInput{TicketCode: "1", ClientName: "C", EventID: "ev_1"})
	_, _ = f.svc.Create(ctx, admin(), CreateInput{TicketCode: "2", ClientName: "C", EventID: "ev_2"})

	list, err := f.svc.List(ctx, staffFor("ev_1"), "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 1 || list[0].EventID != "ev_1" {
		t.Errorf("staff list = %+v", list)
	}

	_, err = f.svc.List(ctx, staffFor("ev_1"), "ev_2")
	if got := codeOf(err); got != model.ErrCodeForbidden {
		t.Errorf("cross-event list code = %q, want %s", got, model.ErrCodeForbidden)
	}

	all, _ := f.svc.List(ctx, admin(), "")
	if len(all) != 2 {
		t.Errorf("admin list = %d, want 2", len(all))
	}
}

func TestGet_StaffCannotSeeOtherEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h, _ := f.svc.Create(ctx, admin(), CreateInput{TicketCode: "1", ClientName: "C", EventID: "ev_2"})

	_, err := f.svc.Get(ctx, staffFor("ev_1"), h.ID)
	if got := codeOf(err); got != model.ErrCodeHandoverNotFound {
		t.Errorf("error code = %q, want %s", got, model.ErrCodeHandoverNotFound)
	}
	if _, err := f.svc.Get(ctx, admin(), h.ID); err != nil {
		t.Errorf("admin Get returned error: %v", err)
	}
}

func TestPrint_IncrementsAndRequiresActiveEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := staffFor("ev_1")
	h, err := f.svc.Create(ctx, staff, validInput())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	printed, err := f.svc.Print(ctx, staff, h.ID)
	if err != nil {
		t.Fatalf("Print returned error: %v", err)
	}
	if printed.PrintCount != 1 || printed.PrintedAt == nil || *printed.PrintedAt != 1500 {
		t.Errorf("printed = %+v", printed)
	}

	f.now = 2001
	_, err = f.svc.Print(ctx, staff, h.ID)
	if got := codeOf(err); got != model.ErrCodeEventNotActive {
		t.Errorf("print after event code = %q, want %s", got, model.ErrCodeEventNotActive)
	}

	again, err := f.svc.Print(ctx, admin(), h.ID)
	if err != nil {
		t.Fatalf("admin Print returned error: %v", err)
	}
	if again.PrintCount != 2 {
		t.Errorf("printCount = %d, want 2", again.PrintCount)
	}
}
