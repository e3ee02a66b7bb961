package repository

import (
	"fmt"
	"strings"

	"github.com/deskflow/helpdesk-service/internal/workflow"
)

// renderPredicate turns a scope predicate into a SQL boolean expression over
// the tickets table, appending bind values to args.
func renderPredicate(pred workflow.Predicate, args *[]any) (string, error) {
	bind := func(v any) string {
		*args = append(*args, v)
		return fmt.Sprintf("$%d", len(*args))
	}

	switch p := pred.(type) {
	case nil:
		return "", fmt.Errorf("nil predicate")
	case workflow.MatchAll:
		return "TRUE", nil
	case workflow.MatchNone:
		return "FALSE", nil
	case workflow.DepartmentIn:
		if len(p.IDs) == 0 {
			return "FALSE", nil
		}
		return "department_id = ANY(" + bind(p.IDs) + ")", nil
	case workflow.AssignedTo:
		return "assigned_to = " + bind(p.UserID), nil
	case workflow.CreatedBy:
		return "created_by = " + bind(p.UserID), nil
	case workflow.HasID:
		return "id = " + bind(p.ID), nil
	case workflow.Not:
		inner, err := renderPredicate(p.Inner, args)
		if err != nil {
			return "", err
		}
		// NULL columns must negate to TRUE, as they do in memory.
		return "NOT COALESCE((" + inner + "), FALSE)", nil
	case workflow.And:
		return renderJoined([]workflow.Predicate(p), " AND ", "TRUE", args)
	case workflow.Or:
		return renderJoined([]workflow.Predicate(p), " OR ", "FALSE", args)
	default:
		return "", fmt.Errorf("unsupported predicate %T", pred)
	}
}

func renderJoined(preds []workflow.Predicate, sep, empty string, args *[]any) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	for _, inner := range preds {
		sql, err := renderPredicate(inner, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}
