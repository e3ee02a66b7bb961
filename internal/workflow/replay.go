package workflow

import (
	"fmt"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// Replay folds a ticket's ordered audit trail into its final status, checking
// that every record starts where the previous one ended.
func Replay(records []domain.TransitionRecord) (domain.TicketStatus, error) {
	status := domain.TicketStatusOpen
	for i, rec := range records {
		if rec.FromStatus != status {
			return status, fmt.Errorf("record %d starts at %s, expected %s", i, rec.FromStatus, status)
		}
		if rec.StatusChange() && rec.ActorRole != domain.RoleSystem {
			if _, ok := transitionMatrix[rec.FromStatus][rec.ToStatus]; !ok {
				return status, fmt.Errorf("record %d: %s -> %s is not a known transition", i, rec.FromStatus, rec.ToStatus)
			}
		}
		status = rec.ToStatus
	}
	return status, nil
}
