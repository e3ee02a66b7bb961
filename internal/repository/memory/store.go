// Package memory is an in-process implementation of repository.Store. It
// backs local development without Postgres and the service tests. A single
// store-wide mutex, held for the life of a transaction, stands in for row
// locks; transactions work on a copy of the state that is discarded on error.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/workflow"
)

// Operations that can be made to fail with FailNext.
const (
	OpTicketUpdate     = "tickets.update"
	OpTicketCreate     = "tickets.create"
	OpTransitionAppend = "transitions.append"
	OpTicketLock       = "tickets.lock"
)

type state struct {
	tickets          map[int64]domain.Ticket
	transitions      []domain.TransitionRecord
	departments      map[int64]domain.Department
	users            map[int64]domain.User
	memberships      map[int64][]int64
	nextTicketID     int64
	nextTransitionID int64
}

func (s *state) clone() *state {
	out := &state{
		tickets:          make(map[int64]domain.Ticket, len(s.tickets)),
		transitions:      append([]domain.TransitionRecord(nil), s.transitions...),
		departments:      make(map[int64]domain.Department, len(s.departments)),
		users:            make(map[int64]domain.User, len(s.users)),
		memberships:      make(map[int64][]int64, len(s.memberships)),
		nextTicketID:     s.nextTicketID,
		nextTransitionID: s.nextTransitionID,
	}
	for id, t := range s.tickets {
		out.tickets[id] = t
	}
	for id, d := range s.departments {
		out.departments[id] = d
	}
	for id, u := range s.users {
		out.users[id] = u
	}
	for id, deps := range s.memberships {
		out.memberships[id] = append([]int64(nil), deps...)
	}
	return out
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	st *state

	failMu   sync.Mutex
	failures map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: &state{
			tickets:     map[int64]domain.Ticket{},
			departments: map[int64]domain.Department{},
			users:       map[int64]domain.User{},
			memberships: map[int64][]int64{},
		},
		failures: map[string]error{},
	}
}

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures[op] = err
}

func (s *Store) takeFailure(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err := s.failures[op]
	delete(s.failures, op)
	return err
}

// AddDepartment seeds a department and returns it with its id.
func (s *Store) AddDepartment(name string, active bool) domain.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	dept := domain.Department{
		ID:        int64(len(s.st.departments) + 1),
		Name:      name,
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
	}
	s.st.departments[dept.ID] = dept
	return dept
}

// AddUser seeds a user with the given department memberships. The role is
// normalized the way rows read from Postgres are.
func (s *Store) AddUser(user domain.User, departmentIDs ...int64) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		user.ID = int64(len(s.st.users) + 1)
	}
	user.Role = domain.NormalizeRole(string(user.Role))
	s.st.users[user.ID] = user
	s.st.memberships[user.ID] = append([]int64(nil), departmentIDs...)
	return user
}

// PutTicket stores a ticket as-is, assigning an id when it has none.
func (s *Store) PutTicket(ticket domain.Ticket) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == 0 {
		s.st.nextTicketID++
		ticket.ID = s.st.nextTicketID
	} else if ticket.ID > s.st.nextTicketID {
		s.st.nextTicketID = ticket.ID
	}
	s.st.tickets[ticket.ID] = cloneTicket(ticket)
	return ticket
}

func (s *Store) root() *view { return &view{store: s} }

func (s *Store) Tickets() repository.TicketRepository         { return ticketRepo{s.root()} }
func (s *Store) Transitions() repository.TransitionRepository { return transitionRepo{s.root()} }
func (s *Store) Departments() repository.DepartmentRepository { return departmentRepo{s.root()} }
func (s *Store) Users() repository.UserRepository             { return userRepo{s.root()} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.root().WithinTx(ctx, fn)
}

// view is either the root store or a transaction bound to a private copy.
type view struct {
	store *Store
	tx    *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func (v *view) Tickets() repository.TicketRepository         { return ticketRepo{v} }
func (v *view) Transitions() repository.TransitionRepository { return transitionRepo{v} }
func (v *view) Departments() repository.DepartmentRepository { return departmentRepo{v} }
func (v *view) Users() repository.UserRepository             { return userRepo{v} }

func (v *view) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if v.tx != nil {
		return fn(v)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()

	txView := &view{store: v.store, tx: v.store.st.clone()}
	if err := fn(txView); err != nil {
		return err
	}
	v.store.st = txView.tx
	return nil
}

type ticketRepo struct{ v *view }

func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := r.v.store.takeFailure(OpTicketCreate); err != nil {
		return err
	}
	return r.v.do(func(st *state) error {
		st.nextTicketID++
		ticket.ID = st.nextTicketID
		ticket.UpdatedAt = ticket.OpenedAt
		st.tickets[ticket.ID] = cloneTicket(*ticket)
		return nil
	})
}

func (r ticketRepo) get(id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.v.do(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return pgx.ErrNoRows
		}
		c := cloneTicket(t)
		out = &c
		return nil
	})
	return out, err
}

func (r ticketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.get(id)
}

func (r ticketRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	if err := r.v.store.takeFailure(OpTicketLock); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r ticketRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.v.do(func(st *state) error {
		_, ok = st.tickets[id]
		return nil
	})
	return ok, err
}

func (r ticketRepo) Visible(ctx context.Context, pred workflow.Predicate, id int64) (bool, error) {
	var visible bool
	err := r.v.do(func(st *state) error {
		t, ok := st.tickets[id]
		visible = ok && pred.Matches(&t)
		return nil
	})
	return visible, err
}

func (r ticketRepo) matching(st *state, filter repository.TicketFilter) []domain.Ticket {
	statuses := map[domain.TicketStatus]bool{}
	for _, s := range filter.Statuses {
		statuses[s] = true
	}
	out := []domain.Ticket{}
	for _, t := range st.tickets {
		t := t
		if filter.Scope == nil || !filter.Scope.Matches(&t) {
			continue
		}
		if len(statuses) > 0 && !statuses[t.Status] {
			continue
		}
		out = append(out, cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r ticketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.v.do(func(st *state) error {
		all := r.matching(st, filter)
		start := filter.Offset
		if start > len(all) {
			start = len(all)
		}
		end := len(all)
		if filter.Limit > 0 && start+filter.Limit < end {
			end = start + filter.Limit
		}
		out = all[start:end]
		return nil
	})
	return out, err
}

func (r ticketRepo) Count(ctx context.Context, filter repository.TicketFilter) (int, error) {
	var n int
	err := r.v.do(func(st *state) error {
		n = len(r.matching(st, filter))
		return nil
	})
	return n, err
}

func (r ticketRepo) UpdateWorkflow(ctx context.Context, ticket *domain.Ticket) error {
	if err := r.v.store.takeFailure(OpTicketUpdate); err != nil {
		return err
	}
	return r.v.do(func(st *state) error {
		if _, ok := st.tickets[ticket.ID]; !ok {
			return pgx.ErrNoRows
		}
		st.tickets[ticket.ID] = cloneTicket(*ticket)
		return nil
	})
}

func (r ticketRepo) ListAutoCloseCandidates(ctx context.Context, solvedBefore time.Time, afterID int64, limit int) ([]int64, error) {
	ids := []int64{}
	err := r.v.do(func(st *state) error {
		for id, t := range st.tickets {
			if id <= afterID || t.Status != domain.TicketStatusSolved || t.SolvedAt == nil {
				continue
			}
			if t.SolvedAt.After(solvedBefore) {
				continue
			}
			ids = append(ids, id)
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, err
}

type transitionRepo struct{ v *view }

func (r transitionRepo) Append(ctx context.Context, record *domain.TransitionRecord) error {
	if err := r.v.store.takeFailure(OpTransitionAppend); err != nil {
		return err
	}
	return r.v.do(func(st *state) error {
		st.nextTransitionID++
		record.ID = st.nextTransitionID
		st.transitions = append(st.transitions, *record)
		return nil
	})
}

func (r transitionRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TransitionRecord, error) {
	out := []domain.TransitionRecord{}
	err := r.v.do(func(st *state) error {
		for _, rec := range st.transitions {
			if rec.TicketID == ticketID {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

type departmentRepo struct{ v *view }

func (r departmentRepo) GetByID(ctx context.Context, id int64) (*domain.Department, error) {
	var out *domain.Department
	err := r.v.do(func(st *state) error {
		d, ok := st.departments[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &d
		return nil
	})
	return out, err
}

func (r departmentRepo) ListActive(ctx context.Context) ([]domain.Department, error) {
	out := []domain.Department{}
	err := r.v.do(func(st *state) error {
		for _, d := range st.departments {
			if d.IsActive {
				out = append(out, d)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r departmentRepo) MemberIDs(ctx context.Context, userID int64) ([]int64, error) {
	var out []int64
	err := r.v.do(func(st *state) error {
		out = append([]int64{}, st.memberships[userID]...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, err
}

func (r departmentRepo) IsMember(ctx context.Context, userID, departmentID int64) (bool, error) {
	var member bool
	err := r.v.do(func(st *state) error {
		for _, id := range st.memberships[userID] {
			if id == departmentID {
				member = true
			}
		}
		return nil
	})
	return member, err
}

type userRepo struct{ v *view }

func (r userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &u
		return nil
	})
	return out, err
}

func (r userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(func(st *state) error {
		for _, u := range st.users {
			if u.Username == username {
				u := u
				out = &u
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return out, err
}

func (r userRepo) ListNotifiable(ctx context.Context, role domain.Role, departmentID *int64) ([]domain.User, error) {
	out := []domain.User{}
	err := r.v.do(func(st *state) error {
		for _, u := range st.users {
			if u.Role != role || strings.TrimSpace(u.Email) == "" {
				continue
			}
			if departmentID != nil && !contains(st.memberships[u.ID], *departmentID) {
				continue
			}
			out = append(out, u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.ContactPhone = cloneString(t.ContactPhone)
	t.AssignedTo = cloneInt(t.AssignedTo)
	t.LastStateChangeAt = cloneTime(t.LastStateChangeAt)
	t.FirstResponseAt = cloneTime(t.FirstResponseAt)
	t.SolvedAt = cloneTime(t.SolvedAt)
	t.SolvedBy = cloneInt(t.SolvedBy)
	t.ClosedAt = cloneTime(t.ClosedAt)
	t.ClosedBy = cloneInt(t.ClosedBy)
	t.CanceledAt = cloneTime(t.CanceledAt)
	t.CanceledBy = cloneInt(t.CanceledBy)
	return t
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
