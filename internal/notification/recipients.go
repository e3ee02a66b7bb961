package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// Directory lists users that can receive mail.
type Directory interface {
	ListNotifiable(ctx context.Context, role domain.Role, departmentID *int64) ([]domain.User, error)
}

// Recipients selects who is mailed about a ticket. Admins are drawn globally,
// managers and agents from the ticket's department. Users without email,
// duplicates and the skip list are dropped.
func (r *Rules) Recipients(ctx context.Context, dir Directory, ticket domain.Ticket, skipUserIDs []int64) ([]domain.User, error) {
	skip := make(map[int64]struct{}, len(skipUserIDs))
	for _, id := range skipUserIDs {
		skip[id] = struct{}{}
	}

	seen := map[int64]struct{}{}
	recipients := []domain.User{}
	for _, role := range r.Roles() {
		selector := r.Selector(role)

		var dept *int64
		if role != domain.RoleAdmin {
			id := ticket.DepartmentID
			dept = &id
		}
		candidates, err := dir.ListNotifiable(ctx, role, dept)
		if err != nil {
			return nil, fmt.Errorf("list %s recipients: %w", role, err)
		}

		for _, user := range candidates {
			if strings.TrimSpace(user.Email) == "" {
				continue
			}
			if _, ok := skip[user.ID]; ok {
				continue
			}
			if _, ok := seen[user.ID]; ok {
				continue
			}
			match, ok := selector.Lookup(user)
			if !ok || !match.Allows(ticket.Category) {
				continue
			}
			seen[user.ID] = struct{}{}
			recipients = append(recipients, user)
		}
	}
	return recipients, nil
}
