package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"erp-access/internal/domain"
)

// MemoryRolesRepo 内存版角色 Repository（DB 关闭时使用，也用于单元测试）
type MemoryRolesRepo struct {
	mu          sync.RWMutex
	nextID      int64
	roles       map[int64]domain.Role           // roleID -> Role
	assignments map[int64]domain.RoleAssignment // assignmentID -> RoleAssignment
}

func NewMemoryRolesRepo() *MemoryRolesRepo {
	return &MemoryRolesRepo{
		nextID:      1,
		roles:       map[int64]domain.Role{},
		assignments: map[int64]domain.RoleAssignment{},
	}
}

var _ RolesRepository = (*MemoryRolesRepo)(nil)

// SeedRole 预置角色（仅内存模式启动和测试使用）
func (r *MemoryRolesRepo) SeedRole(role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.RoleID] = role
}

func (r *MemoryRolesRepo) GetRole(_ context.Context, roleID int64) (*domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[roleID]
	if !ok {
		return nil, fmt.Errorf("role not found: role_id=%d", roleID)
	}
	return &role, nil
}

func (r *MemoryRolesRepo) ListRoles(_ context.Context) ([]*domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Role, 0, len(r.roles))
	for _, role := range r.roles {
		rc := role
		out = append(out, &rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level > out[j].Level })
	return out, nil
}

func (r *MemoryRolesRepo) ListAssignmentsForUser(_ context.Context, userID int64) ([]domain.AssignmentWithLevel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.AssignmentWithLevel
	for _, a := range r.assignments {
		if a.UserID != userID {
			continue
		}
		role, ok := r.roles[a.RoleID]
		if !ok {
			continue
		}
		if role.IsActive.Valid && !role.IsActive.Bool {
			continue
		}
		out = append(out, domain.AssignmentWithLevel{
			RoleAssignment: a,
			RoleName:       role.RoleName,
			RoleLevel:      role.Level,
		})
	}
	return out, nil
}

func (r *MemoryRolesRepo) GetAssignment(_ context.Context, assignmentID int64) (*domain.RoleAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assignments[assignmentID]
	if !ok {
		return nil, fmt.Errorf("assignment not found: assignment_id=%d", assignmentID)
	}
	return &a, nil
}

func (r *MemoryRolesRepo) CreateAssignment(_ context.Context, a *domain.RoleAssignment) (int64, error) {
	if a.UserID == 0 || a.RoleID == 0 {
		return 0, fmt.Errorf("user_id and role_id are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[a.RoleID]; !ok {
		return 0, fmt.Errorf("role not found: role_id=%d", a.RoleID)
	}

	// UNIQUE (user_id, role_id, company_id): 重复分配时复用已有行
	for id, old := range r.assignments {
		if old.UserID == a.UserID && old.RoleID == a.RoleID && old.CompanyID == a.CompanyID {
			return id, nil
		}
	}

	na := *a
	na.AssignmentID = r.nextID
	r.nextID++
	if na.CreatedAt.IsZero() {
		na.CreatedAt = time.Now()
	}
	r.assignments[na.AssignmentID] = na
	return na.AssignmentID, nil
}

func (r *MemoryRolesRepo) DeleteAssignment(_ context.Context, assignmentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assignments[assignmentID]; !ok {
		return fmt.Errorf("assignment not found: assignment_id=%d", assignmentID)
	}
	delete(r.assignments, assignmentID)
	return nil
}
