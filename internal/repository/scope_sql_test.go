package repository

import (
	"reflect"
	"testing"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/workflow"
)

func TestRenderPredicate(t *testing.T) {
	tests := []struct {
		name string
		pred workflow.Predicate
		sql  string
		args []any
	}{
		{"all", workflow.MatchAll{}, "TRUE", nil},
		{"none", workflow.MatchNone{}, "FALSE", nil},
		{"empty departments", workflow.DepartmentIn{}, "FALSE", nil},
		{
			"agent attend scope",
			workflow.AttendScope(domain.NewActor(7, domain.RoleAgent, []int64{1, 2})),
			"((department_id = ANY($1) OR assigned_to = $2) AND NOT COALESCE((created_by = $3), FALSE))",
			[]any{[]int64{1, 2}, int64(7), int64(7)},
		},
		{
			"guard",
			workflow.GuardScope(domain.NewActor(9, domain.RoleEndUser, nil), 42),
			"(id = $1 AND (FALSE OR created_by = $2))",
			[]any{int64(42), int64(9)},
		},
		{"empty and", workflow.And{}, "TRUE", nil},
		{"empty or", workflow.Or{}, "FALSE", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []any
			sql, err := renderPredicate(tt.pred, &args)
			if err != nil {
				t.Fatalf("renderPredicate: %v", err)
			}
			if sql != tt.sql {
				t.Errorf("sql = %q, want %q", sql, tt.sql)
			}
			if !reflect.DeepEqual(args, tt.args) {
				t.Errorf("args = %#v, want %#v", args, tt.args)
			}
		})
	}
}

func TestRenderPredicateContinuesNumbering(t *testing.T) {
	args := []any{"solved"}
	sql, err := renderPredicate(workflow.CreatedBy{UserID: 3}, &args)
	if err != nil {
		t.Fatal(err)
	}
	if sql != "created_by = $2" || len(args) != 2 {
		t.Fatalf("sql = %q args = %v", sql, args)
	}
}

type unknownPredicate struct{}

func (unknownPredicate) Matches(*domain.Ticket) bool { return false }

func TestRenderPredicateRejectsUnknown(t *testing.T) {
	var args []any
	if _, err := renderPredicate(workflow.Or{unknownPredicate{}}, &args); err == nil {
		t.Fatal("expected error for unsupported predicate")
	}
}
