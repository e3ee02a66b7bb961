package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/repository/memory"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

var baseTime = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t          *testing.T
	store      *memory.Store
	dispatcher events.Dispatcher
	publisher  *EventPublisher
	metrics    *observability.Metrics
	now        time.Time

	dept      domain.Department
	otherDept domain.Department
	admin     domain.User
	manager   domain.User
	agentX    domain.User
	agentY    domain.User
	outsider  domain.User
	requester domain.User

	mu     sync.Mutex
	events []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	f := &fixture{
		t:          t,
		store:      store,
		dispatcher: events.NewInMemoryDispatcher(),
		metrics:    observability.NewMetrics(),
		now:        baseTime,
	}
	f.publisher = NewEventPublisher(f.dispatcher, nil, f.metrics)
	for _, eventType := range events.AllEventTypes {
		f.dispatcher.Subscribe(eventType, f.record)
	}

	f.dept = store.AddDepartment("SISTEMAS", true)
	f.otherDept = store.AddDepartment("CEDIS", true)
	f.admin = store.AddUser(domain.User{Username: "ana", FullName: "Ana Admin", Email: "ana@example.com", Role: domain.RoleAdmin})
	f.manager = store.AddUser(domain.User{Username: "mario", FullName: "Mario Jefe", Email: "mario@example.com", Role: domain.RoleManager}, f.dept.ID)
	f.agentX = store.AddUser(domain.User{Username: "xavi", FullName: "Xavier Soporte", Email: "xavi@example.com", Role: "agente"}, f.dept.ID)
	f.agentY = store.AddUser(domain.User{Username: "yola", FullName: "Yolanda Soporte", Email: "yola@example.com", Role: domain.RoleAgent}, f.dept.ID)
	f.outsider = store.AddUser(domain.User{Username: "otto", FullName: "Otto Cedis", Email: "otto@example.com", Role: domain.RoleAgent}, f.otherDept.ID)
	f.requester = store.AddUser(domain.User{Username: "rita", FullName: "Rita Ventas", Email: "rita@example.com", Role: "usuario"})
	return f
}

func (f *fixture) record(_ context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fixture) published() []events.Event {
	f.publisher.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

func (f *fixture) clock() Clock {
	return func() time.Time { return f.now }
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) actor(u domain.User) domain.Actor {
	deps, err := f.store.Departments().MemberIDs(context.Background(), u.ID)
	if err != nil {
		f.t.Fatalf("member ids: %v", err)
	}
	return domain.NewActor(u.ID, u.Role, deps)
}

func (f *fixture) transitions() *TransitionService {
	return NewTransitionService(TransitionDependencies{
		Store:     f.store,
		Publisher: f.publisher,
		Metrics:   f.metrics,
		Clock:     f.clock(),
	})
}

func (f *fixture) tickets() *TicketService {
	return NewTicketService(TicketDependencies{Store: f.store, Publisher: f.publisher, Clock: f.clock()})
}

// putTicket stores a ticket filed by the requester in the fixture department.
func (f *fixture) putTicket(status domain.TicketStatus, mutate func(*domain.Ticket)) domain.Ticket {
	ticket := domain.Ticket{
		Subject:      "Impresora sin toner",
		Description:  "La impresora del segundo piso no imprime",
		Category:     "Impresión",
		DepartmentID: f.dept.ID,
		CreatedBy:    f.requester.ID,
		CreatorName:  f.requester.FullName,
		Status:       status,
		OpenedAt:     f.now.Add(-time.Hour),
		UpdatedAt:    f.now.Add(-time.Hour),
	}
	if mutate != nil {
		mutate(&ticket)
	}
	return f.store.PutTicket(ticket)
}

func (f *fixture) load(id int64) domain.Ticket {
	f.t.Helper()
	ticket, err := f.store.Tickets().GetByID(context.Background(), id)
	if err != nil {
		f.t.Fatalf("load ticket %d: %v", id, err)
	}
	return *ticket
}

func (f *fixture) history(id int64) []domain.TransitionRecord {
	f.t.Helper()
	records, err := f.store.Transitions().ListByTicket(context.Background(), id)
	if err != nil {
		f.t.Fatalf("history %d: %v", id, err)
	}
	return records
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }
