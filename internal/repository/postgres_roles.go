package repository

import (
	"context"
	"database/sql"
	"fmt"

	"erp-access/internal/domain"
)

// PostgresRolesRepository 角色与角色分配 Repository 实现
type PostgresRolesRepository struct {
	db *sql.DB
}

// NewPostgresRolesRepository 创建角色 Repository
func NewPostgresRolesRepository(db *sql.DB) *PostgresRolesRepository {
	return &PostgresRolesRepository{db: db}
}

// 确保实现了接口
var _ RolesRepository = (*PostgresRolesRepository)(nil)

// GetRole 查询单个角色
func (r *PostgresRolesRepository) GetRole(ctx context.Context, roleID int64) (*domain.Role, error) {
	query := `
		SELECT role_id, role_name, level, COALESCE(description,''), is_active
		  FROM ` + TableRoles + `
		 WHERE role_id = $1
	`

	var role domain.Role
	err := r.db.QueryRowContext(ctx, query, roleID).Scan(
		&role.RoleID,
		&role.RoleName,
		&role.Level,
		&role.Description,
		&role.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("role not found: role_id=%d", roleID)
		}
		return nil, fmt.Errorf("failed to query role: %w", err)
	}

	return &role, nil
}

// ListRoles 查询全部角色（按 level 降序）
func (r *PostgresRolesRepository) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	query := `
		SELECT role_id, role_name, level, COALESCE(description,''), is_active
		  FROM ` + TableRoles + `
		 ORDER BY level DESC, role_name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(
			&role.RoleID,
			&role.RoleName,
			&role.Level,
			&role.Description,
			&role.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

// ListAssignmentsForUser 查询用户的全部角色分配（JOIN roles 取等级）
// 只返回 is_active 的角色
func (r *PostgresRolesRepository) ListAssignmentsForUser(ctx context.Context, userID int64) ([]domain.AssignmentWithLevel, error) {
	query := `
		SELECT ur.assignment_id,
		       ur.user_id,
		       ur.role_id,
		       ur.company_id,
		       ur.created_at,
		       r.role_name,
		       r.level
		  FROM ` + TableUserRoles + ` ur
		  JOIN ` + TableRoles + ` r ON r.role_id = ur.role_id
		 WHERE ur.user_id = $1
		   AND COALESCE(r.is_active, TRUE) = TRUE
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.AssignmentWithLevel
	for rows.Next() {
		var a domain.AssignmentWithLevel
		if err := rows.Scan(
			&a.AssignmentID,
			&a.UserID,
			&a.RoleID,
			&a.CompanyID,
			&a.CreatedAt,
			&a.RoleName,
			&a.RoleLevel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role assignments: %w", err)
	}

	return assignments, nil
}

// GetAssignment 查询单条分配
func (r *PostgresRolesRepository) GetAssignment(ctx context.Context, assignmentID int64) (*domain.RoleAssignment, error) {
	query := `
		SELECT assignment_id, user_id, role_id, company_id, created_at
		  FROM ` + TableUserRoles + `
		 WHERE assignment_id = $1
	`

	var a domain.RoleAssignment
	err := r.db.QueryRowContext(ctx, query, assignmentID).Scan(
		&a.AssignmentID,
		&a.UserID,
		&a.RoleID,
		&a.CompanyID,
		&a.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("role assignment not found: assignment_id=%d", assignmentID)
		}
		return nil, fmt.Errorf("failed to query role assignment: %w", err)
	}

	return &a, nil
}

// CreateAssignment 创建分配，返回新 assignment_id
func (r *PostgresRolesRepository) CreateAssignment(ctx context.Context, a *domain.RoleAssignment) (int64, error) {
	query := `
		INSERT INTO ` + TableUserRoles + ` (user_id, role_id, company_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role_id, company_id) DO UPDATE SET role_id = EXCLUDED.role_id
		RETURNING assignment_id
	`

	var assignmentID int64
	err := r.db.QueryRowContext(ctx, query, a.UserID, a.RoleID, a.CompanyID).Scan(&assignmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to create role assignment: %w", err)
	}

	return assignmentID, nil
}

// DeleteAssignment 删除分配
func (r *PostgresRolesRepository) DeleteAssignment(ctx context.Context, assignmentID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM `+TableUserRoles+` WHERE assignment_id = $1`,
		assignmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete role assignment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("role assignment not found: assignment_id=%d", assignmentID)
	}

	return nil
}
