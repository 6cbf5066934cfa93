package repository

import (
	"context"

	"erp-access/internal/domain"
)

// RolesRepository 角色与角色分配 Repository 接口
// 使用强类型领域模型，不使用 map[string]any
type RolesRepository interface {
	// GetRole 查询单个角色
	GetRole(ctx context.Context, roleID int64) (*domain.Role, error)

	// ListRoles 查询全部角色（静态参考数据，按 level 降序）
	ListRoles(ctx context.Context) ([]*domain.Role, error)

	// ListAssignmentsForUser 查询用户的全部角色分配（JOIN roles 取等级）
	// 只返回 is_active 的角色；顺序不保证，scope 解析自行选优
	ListAssignmentsForUser(ctx context.Context, userID int64) ([]domain.AssignmentWithLevel, error)

	// GetAssignment 查询单条分配
	GetAssignment(ctx context.Context, assignmentID int64) (*domain.RoleAssignment, error)

	// CreateAssignment 创建分配，返回新 assignment_id
	// （业务规则在 Service 层验证，这里只做数据完整性）
	CreateAssignment(ctx context.Context, a *domain.RoleAssignment) (int64, error)

	// DeleteAssignment 删除分配
	DeleteAssignment(ctx context.Context, assignmentID int64) error
}
