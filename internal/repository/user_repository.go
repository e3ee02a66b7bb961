package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// UserRepository defines persistence access for users. Stored role spellings
// are normalized on read.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// ListNotifiable returns users of the role that have an email address,
	// restricted to members of departmentID when it is set.
	ListNotifiable(ctx context.Context, role domain.Role, departmentID *int64) ([]domain.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `u.id, u.username, u.full_name, u.email, u.password_hash, u.role, u.created_at`

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id=$1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.username=$1`
	return scanUser(r.db.QueryRow(ctx, query, username))
}

// roleSpellings lists the stored spellings that normalize to role.
func roleSpellings(role domain.Role) []string {
	switch role {
	case domain.RoleAgent:
		return []string{"agent", "agente"}
	case domain.RoleEndUser:
		return []string{"user", "usuario", "end-user", "end_user"}
	default:
		return []string{string(role)}
	}
}

func (r *userRepository) ListNotifiable(ctx context.Context, role domain.Role, departmentID *int64) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u
        WHERE LOWER(u.role) = ANY($1) AND u.email <> ''`
	args := []any{roleSpellings(role)}
	if departmentID != nil {
		query += ` AND EXISTS (SELECT 1 FROM user_department_access uda
            WHERE uda.user_id = u.id AND uda.department_id = $2)`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY u.id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var role string
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FullName,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.NormalizeRole(role)
	return &user, nil
}
