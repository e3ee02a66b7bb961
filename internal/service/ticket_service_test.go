package service

import (
	"context"
	"strings"
	"testing"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

func validInput(deptID int64) TicketCreateInput {
	return TicketCreateInput{
		Subject:      "  No funciona el correo  ",
		Description:  "Outlook no sincroniza desde esta mañana.",
		DepartmentID: deptID,
		CreatorName:  " Rita Ventas ",
		ContactPhone: "  +52 (55) 1234-5678  ",
	}
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.tickets().CreateTicket(context.Background(), f.actor(f.requester), validInput(f.dept.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.ID == 0 || ticket.Status != domain.TicketStatusOpen || !ticket.OpenedAt.Equal(f.now) {
		t.Fatalf("ticket = %+v", ticket)
	}
	if ticket.Subject != "No funciona el correo" || ticket.CreatorName != "Rita Ventas" {
		t.Fatalf("fields not trimmed: %q %q", ticket.Subject, ticket.CreatorName)
	}
	if ticket.Category != "Correo" {
		t.Fatalf("category = %q", ticket.Category)
	}
	if ticket.ContactPhone == nil || *ticket.ContactPhone != "+52 (55) 1234-5678" {
		t.Fatalf("phone = %v", ticket.ContactPhone)
	}
	if ticket.CreatedBy != f.requester.ID {
		t.Fatalf("created_by = %d", ticket.CreatedBy)
	}

	evs := f.published()
	if len(evs) != 1 || evs[0].Type != events.EventTicketCreated {
		t.Fatalf("events = %+v", evs)
	}
	if len(evs[0].SkipUserIDs) != 1 || evs[0].SkipUserIDs[0] != f.requester.ID {
		t.Fatalf("skip list = %v", evs[0].SkipUserIDs)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	inactive := f.store.AddDepartment("ARCHIVO", false)

	tests := []struct {
		name   string
		mutate func(*TicketCreateInput)
	}{
		{"short creator name", func(in *TicketCreateInput) { in.CreatorName = " Al " }},
		{"short subject", func(in *TicketCreateInput) { in.Subject = "Hola" }},
		{"short description", func(in *TicketCreateInput) { in.Description = "No sirve" }},
		{"missing department", func(in *TicketCreateInput) { in.DepartmentID = 0 }},
		{"unknown department", func(in *TicketCreateInput) { in.DepartmentID = 999 }},
		{"inactive department", func(in *TicketCreateInput) { in.DepartmentID = inactive.ID }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput(f.dept.ID)
			tc.mutate(&input)
			_, err := f.tickets().CreateTicket(context.Background(), f.actor(f.requester), input)
			wantCode(t, err, apperrors.CodeValidation)
		})
	}
}

func TestCreateTicketPhone(t *testing.T) {
	f := newFixture(t)
	svc := f.tickets()

	input := validInput(f.dept.ID)
	input.ContactPhone = "   "
	ticket, err := svc.CreateTicket(context.Background(), f.actor(f.requester), input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.ContactPhone != nil {
		t.Fatalf("blank phone stored as %q", *ticket.ContactPhone)
	}

	input.ContactPhone = strings.Repeat("9", 40)
	ticket, err = svc.CreateTicket(context.Background(), f.actor(f.requester), input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.ContactPhone == nil || len(*ticket.ContactPhone) != maxPhoneRunes {
		t.Fatalf("phone = %v", ticket.ContactPhone)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		subject string
		dept    string
		want    string
	}{
		{"La impresora no imprime", "COMPRAS", "Impresión"},
		{"Cambiar TONER", "", "Impresión"},
		{"No llega el correo", "", "Correo"},
		{"Olvidé mi contraseña", "", "Accesos"},
		{"Reset de password", "", "Accesos"},
		{"Licencia de software vencida", "", "Software"},
		{"Sin wifi en bodega", "", "Red"},
		{"El teclado no responde", "", "Hardware"},
		{"Cotización de proveedor", "", "Compras"},
		{"Ayuda general", "SISTEMAS", "Soporte"},
		{"Ayuda general", "cedis", "Logística"},
		{"Ayuda general", "Compras", "Compras"},
		{"Ayuda general", "VENTAS", DefaultCategory},
	}
	for _, tc := range tests {
		t.Run(tc.subject+"/"+tc.dept, func(t *testing.T) {
			if got := Categorize(tc.subject, tc.dept); got != tc.want {
				t.Fatalf("Categorize(%q, %q) = %q, want %q", tc.subject, tc.dept, got, tc.want)
			}
		})
	}
}

func TestListTicketsViews(t *testing.T) {
	f := newFixture(t)
	filed := f.putTicket(domain.TicketStatusOpen, nil)
	ownByAgent := f.putTicket(domain.TicketStatusOpen, func(tk *domain.Ticket) { tk.CreatedBy = f.agentX.ID })
	elsewhere := f.putTicket(domain.TicketStatusOpen, func(tk *domain.Ticket) { tk.DepartmentID = f.otherDept.ID })
	svc := f.tickets()

	ids := func(page *TicketPage) map[int64]bool {
		out := map[int64]bool{}
		for _, tk := range page.Tickets {
			out[tk.ID] = true
		}
		return out
	}

	attend, err := svc.ListTickets(context.Background(), f.actor(f.agentX), TicketListInput{View: ViewAttend})
	if err != nil {
		t.Fatalf("attend: %v", err)
	}
	got := ids(attend)
	if !got[filed.ID] || got[ownByAgent.ID] || got[elsewhere.ID] {
		t.Fatalf("agent attend view = %v", got)
	}

	requested, err := svc.ListTickets(context.Background(), f.actor(f.agentX), TicketListInput{View: ViewRequested})
	if err != nil {
		t.Fatalf("requested: %v", err)
	}
	if got := ids(requested); len(got) != 1 || !got[ownByAgent.ID] {
		t.Fatalf("agent requested view = %v", got)
	}

	redirected, err := svc.ListTickets(context.Background(), f.actor(f.requester), TicketListInput{View: ViewAttend})
	if err != nil {
		t.Fatalf("end-user attend: %v", err)
	}
	if redirected.View != ViewRequested {
		t.Fatalf("end-user view = %s", redirected.View)
	}
	if got := ids(redirected); len(got) != 2 || !got[filed.ID] || !got[elsewhere.ID] {
		t.Fatalf("end-user view = %v", got)
	}

	all, err := svc.ListTickets(context.Background(), f.actor(f.admin), TicketListInput{})
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if all.Total != 3 {
		t.Fatalf("admin total = %d", all.Total)
	}

	if _, err := svc.ListTickets(context.Background(), f.actor(f.admin), TicketListInput{View: "mine"}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("unknown view err = %v", err)
	}
}

func TestListTicketsPagingAndStatus(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.putTicket(domain.TicketStatusOpen, nil)
	}
	f.putTicket(domain.TicketStatusSolved, nil)
	svc := f.tickets()
	admin := f.actor(f.admin)

	page, err := svc.ListTickets(context.Background(), admin, TicketListInput{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 6 || len(page.Tickets) != 2 || page.Page != 2 {
		t.Fatalf("page = %+v", page)
	}

	solved, err := svc.ListTickets(context.Background(), admin, TicketListInput{Statuses: []domain.TicketStatus{domain.TicketStatusSolved}})
	if err != nil {
		t.Fatalf("list solved: %v", err)
	}
	if solved.Total != 1 || solved.Tickets[0].Status != domain.TicketStatusSolved {
		t.Fatalf("solved page = %+v", solved)
	}

	if _, size := normalizePage(0, 1000); size != maxPageSize {
		t.Fatalf("page size not capped: %d", size)
	}
}

func TestGetTicketNotFoundVersusForbidden(t *testing.T) {
	f := newFixture(t)
	ticket := f.putTicket(domain.TicketStatusOpen, nil)
	svc := f.tickets()

	_, err := svc.GetTicket(context.Background(), f.actor(f.outsider), ticket.ID)
	wantCode(t, err, apperrors.CodeForbidden)

	_, err = svc.GetTicket(context.Background(), f.actor(f.outsider), 999)
	wantCode(t, err, apperrors.CodeNotFound)

	detail, err := svc.GetTicket(context.Background(), f.actor(f.agentX), ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := []domain.TicketStatus{domain.TicketStatusCanceled, domain.TicketStatusInProgress}
	if len(detail.AllowedTargets) != len(want) {
		t.Fatalf("allowed = %v, want %v", detail.AllowedTargets, want)
	}
	for i := range want {
		if detail.AllowedTargets[i] != want[i] {
			t.Fatalf("allowed = %v, want %v", detail.AllowedTargets, want)
		}
	}
}

func TestGetTicketTargetsMatchExecutor(t *testing.T) {
	f := newFixture(t)
	ticket := f.putTicket(domain.TicketStatusInProgress, func(tk *domain.Ticket) {
		tk.AssignedTo = int64Ptr(f.agentX.ID)
	})

	detail, err := f.tickets().GetTicket(context.Background(), f.actor(f.agentY), ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, status := range detail.AllowedTargets {
		if status == domain.TicketStatusOpen {
			t.Fatalf("non-assignee offered release: %v", detail.AllowedTargets)
		}
	}

	_, err = f.transitions().Transition(context.Background(), f.actor(f.agentY), ticket.ID, "open", "", domain.RequestMeta{})
	wantCode(t, err, apperrors.CodeForbidden)

	for _, status := range detail.AllowedTargets {
		fresh := newFixture(t)
		held := fresh.putTicket(domain.TicketStatusInProgress, func(tk *domain.Ticket) {
			tk.AssignedTo = int64Ptr(fresh.agentX.ID)
		})
		if _, err := fresh.transitions().Transition(context.Background(), fresh.actor(fresh.agentY), held.ID, string(status), "", domain.RequestMeta{}); err != nil {
			t.Fatalf("offered target %s rejected: %v", status, err)
		}
	}
}

func TestHistoryIsOrderedAndGuarded(t *testing.T) {
	f := newFixture(t)
	ticket := f.putTicket(domain.TicketStatusOpen, nil)
	tr := f.transitions()
	for _, to := range []string{"in_progress", "solved"} {
		if _, err := tr.Transition(context.Background(), f.actor(f.agentX), ticket.ID, to, "", meta); err != nil {
			t.Fatalf("%s: %v", to, err)
		}
	}

	records, err := f.tickets().History(context.Background(), f.actor(f.requester), ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 2 || records[0].ToStatus != domain.TicketStatusInProgress || records[1].ToStatus != domain.TicketStatusSolved {
		t.Fatalf("records = %+v", records)
	}

	_, err = f.tickets().History(context.Background(), f.actor(f.outsider), ticket.ID)
	wantCode(t, err, apperrors.CodeForbidden)
}
