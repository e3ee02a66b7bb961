package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// DepartmentRepository manages departments and staff membership.
type DepartmentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Department, error)
	ListActive(ctx context.Context) ([]domain.Department, error)
	// MemberIDs lists the departments the user belongs to.
	MemberIDs(ctx context.Context, userID int64) ([]int64, error)
	IsMember(ctx context.Context, userID, departmentID int64) (bool, error)
}

type departmentRepository struct {
	db DBTX
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(db DBTX) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) GetByID(ctx context.Context, id int64) (*domain.Department, error) {
	const query = `
        SELECT id, name, is_active, created_at
        FROM departments WHERE id=$1`
	var dept domain.Department
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&dept.ID,
		&dept.Name,
		&dept.IsActive,
		&dept.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) ListActive(ctx context.Context) ([]domain.Department, error) {
	const query = `
        SELECT id, name, is_active, created_at
        FROM departments WHERE is_active = TRUE ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Department, error) {
		var dept domain.Department
		err := row.Scan(&dept.ID, &dept.Name, &dept.IsActive, &dept.CreatedAt)
		return dept, err
	})
}

func (r *departmentRepository) MemberIDs(ctx context.Context, userID int64) ([]int64, error) {
	const query = `
        SELECT department_id FROM user_department_access
        WHERE user_id=$1 ORDER BY department_id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *departmentRepository) IsMember(ctx context.Context, userID, departmentID int64) (bool, error) {
	const query = `
        SELECT EXISTS (SELECT 1 FROM user_department_access WHERE user_id=$1 AND department_id=$2)`
	var member bool
	err := r.db.QueryRow(ctx, query, userID, departmentID).Scan(&member)
	return member, err
}
