package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"erp-access/internal/domain"
	"erp-access/internal/repository"
)

// AdminService 管理操作服务接口
// 全部操作在 scope 门禁之后执行，写操作落审计；
// 旧系统里直接改库的一次性脚本都收敛到这里
type AdminService interface {
	// 用户管理
	ListUsers(ctx context.Context, scope *domain.TenantScope, req ListUsersRequest) (*ListUsersResponse, error)
	ExportUsers(ctx context.Context, scope *domain.TenantScope, req ListUsersRequest) (*ListUsersResponse, error)
	CreateUser(ctx context.Context, scope *domain.TenantScope, req CreateUserRequest) (int64, error)
	ResetPassword(ctx context.Context, scope *domain.TenantScope, req ResetPasswordRequest) error
	SetUserStatus(ctx context.Context, scope *domain.TenantScope, req SetUserStatusRequest) error

	// 角色分配
	ListRoles(ctx context.Context, scope *domain.TenantScope) ([]*domain.Role, error)
	ListRoleAssignments(ctx context.Context, scope *domain.TenantScope, userID int64) ([]domain.AssignmentWithLevel, error)
	CreateRoleAssignment(ctx context.Context, scope *domain.TenantScope, req CreateAssignmentRequest) (int64, error)
	DeleteRoleAssignment(ctx context.Context, scope *domain.TenantScope, assignmentID int64) error

	// 菜单注册表（平台级静态参考数据，管理端只读）
	ListMenuRegistry(ctx context.Context, scope *domain.TenantScope) ([]domain.MenuEntry, error)

	// 公司管理
	ListCompanies(ctx context.Context, scope *domain.TenantScope, status string, page, size int) ([]*domain.Company, int, error)
	UpdateMenuAllowlist(ctx context.Context, scope *domain.TenantScope, req UpdateAllowlistRequest) error

	// 审计
	ListAudit(ctx context.Context, scope *domain.TenantScope, page, size int) ([]domain.AuditRecord, int, error)
}

type adminService struct {
	usersRepo     repository.UsersRepository
	rolesRepo     repository.RolesRepository
	companiesRepo repository.CompaniesRepository
	menusRepo     repository.MenusRepository
	auditRepo     repository.AuditRepository
	access        AccessService
	logger        *zap.Logger
}

// NewAdminService 创建 AdminService 实例
func NewAdminService(
	usersRepo repository.UsersRepository,
	rolesRepo repository.RolesRepository,
	companiesRepo repository.CompaniesRepository,
	menusRepo repository.MenusRepository,
	auditRepo repository.AuditRepository,
	access AccessService,
	logger *zap.Logger,
) AdminService {
	return &adminService{
		usersRepo:     usersRepo,
		rolesRepo:     rolesRepo,
		companiesRepo: companiesRepo,
		menusRepo:     menusRepo,
		auditRepo:     auditRepo,
		access:        access,
		logger:        logger,
	}
}

var _ AdminService = (*adminService)(nil)

// ListUsersRequest 用户列表请求
type ListUsersRequest struct {
	CompanyID *int64 // 平台角色可指定；租户角色忽略，恒用自身公司
	Search    string
	Status    string
	Page      int
	Size      int
}

// ListUsersResponse 用户列表响应
type ListUsersResponse struct {
	Users []*domain.User
	Total int
}

func (s *adminService) ListUsers(ctx context.Context, scope *domain.TenantScope, req ListUsersRequest) (*ListUsersResponse, error) {
	if err := RequireLevel(scope, LevelCompanyRead); err != nil {
		return nil, err
	}

	// 公司过滤注入：冲突在读数据之前拒绝
	companyFilter, err := ReadCompanyFilter(scope)
	if err != nil {
		return nil, err
	}
	if req.CompanyID != nil {
		if !scope.AllowsCompany(*req.CompanyID) {
			return nil, fmt.Errorf("company %d is outside caller scope: %w", *req.CompanyID, domain.ErrForbidden)
		}
		companyFilter = req.CompanyID
	}

	users, total, err := s.usersRepo.ListUsers(ctx, companyFilter, repository.UsersFilter{
		Search: req.Search,
		Status: req.Status,
	}, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", domain.ErrFetch)
	}
	return &ListUsersResponse{Users: users, Total: total}, nil
}

// ExportUsers 导出用户全量数据
// 全量批量落盘，门槛比在线列表高：公司管理员（>=80）起
func (s *adminService) ExportUsers(ctx context.Context, scope *domain.TenantScope, req ListUsersRequest) (*ListUsersResponse, error) {
	if err := RequireLevel(scope, LevelCompanyAdmin); err != nil {
		return nil, err
	}
	return s.ListUsers(ctx, scope, req)
}

// CreateUserRequest 建用户请求
type CreateUserRequest struct {
	CompanyID    *int64 // 可选；与 scope 冲突时 FORBIDDEN
	UserAccount  string
	AccountHash  []byte
	PasswordHash []byte
	Nickname     string
	Email        string
	EmailHash    []byte
}

func (s *adminService) CreateUser(ctx context.Context, scope *domain.TenantScope, req CreateUserRequest) (int64, error) {
	if err := RequireLevel(scope, LevelCompanyAdmin); err != nil {
		return 0, err
	}
	companyID, err := ResolveWriteCompany(scope, req.CompanyID)
	if err != nil {
		return 0, err
	}
	if req.UserAccount == "" || len(req.AccountHash) == 0 {
		return 0, fmt.Errorf("user_account and account hash are required")
	}

	user := &domain.User{
		CompanyID:       sql.NullInt64{Int64: companyID, Valid: true},
		UserAccount:     req.UserAccount,
		UserAccountHash: req.AccountHash,
		PasswordHash:    req.PasswordHash,
		Status:          "active",
	}
	if req.Nickname != "" {
		user.Nickname = sql.NullString{String: req.Nickname, Valid: true}
	}
	if req.Email != "" {
		user.Email = sql.NullString{String: req.Email, Valid: true}
		user.EmailHash = req.EmailHash
	}

	userID, err := s.usersRepo.CreateUser(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", domain.ErrFetch)
	}

	s.audit(ctx, scope, "user.create", "user", fmt.Sprintf("%d", userID), &companyID, map[string]any{
		"user_account": req.UserAccount,
	})
	return userID, nil
}

// ResetPasswordRequest 重置密码请求
type ResetPasswordRequest struct {
	UserID       int64
	PasswordHash []byte
}

func (s *adminService) ResetPassword(ctx context.Context, scope *domain.TenantScope, req ResetPasswordRequest) error {
	if err := RequireLevel(scope, LevelCompanyAdmin); err != nil {
		return err
	}
	target, err := s.loadTargetUser(ctx, scope, req.UserID)
	if err != nil {
		return err
	}
	// password_hash 列存 SHA-256 摘要，长度必须是 32 字节
	if len(req.PasswordHash) != sha256.Size {
		return fmt.Errorf("password hash must be %d bytes, got %d", sha256.Size, len(req.PasswordHash))
	}

	if err := s.usersRepo.UpdateUserPassword(ctx, req.UserID, req.PasswordHash); err != nil {
		return fmt.Errorf("failed to reset password: %w", domain.ErrFetch)
	}

	s.audit(ctx, scope, "user.password.reset", "user", fmt.Sprintf("%d", req.UserID), nullableCompany(target.CompanyID), nil)
	return nil
}

// SetUserStatusRequest 账号状态变更请求（锁定/解锁）
type SetUserStatusRequest struct {
	UserID int64
	Status string // "active" | "locked"
}

func (s *adminService) SetUserStatus(ctx context.Context, scope *domain.TenantScope, req SetUserStatusRequest) error {
	if err := RequireLevel(scope, LevelCompanyAdmin); err != nil {
		return err
	}
	target, err := s.loadTargetUser(ctx, scope, req.UserID)
	if err != nil {
		return err
	}

	if err := s.usersRepo.UpdateUserStatus(ctx, req.UserID, req.Status); err != nil {
		return fmt.Errorf("failed to update user status: %w", domain.ErrFetch)
	}

	s.audit(ctx, scope, "user.status.update", "user", fmt.Sprintf("%d", req.UserID), nullableCompany(target.CompanyID), map[string]any{
		"status": req.Status,
	})

	// 锁定立即生效：清掉旧 scope 缓存
	if err := s.access.InvalidateScope(ctx, req.UserID); err != nil {
		s.logger.Warn("Failed to invalidate scope cache",
			zap.Int64("user_id", req.UserID),
			zap.Error(err),
		)
	}
	return nil
}

// loadTargetUser 读目标用户并做租户归属检查
func (s *adminService) loadTargetUser(ctx context.Context, scope *domain.TenantScope, userID int64) (*domain.User, error) {
	target, err := s.usersRepo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	if target.CompanyID.Valid && !scope.AllowsCompany(target.CompanyID.Int64) {
		return nil, fmt.Errorf("user %d is outside caller scope: %w", userID, domain.ErrForbidden)
	}
	if !target.CompanyID.Valid && !scope.Platform {
		// 平台账号只有平台角色能动
		return nil, domain.ErrForbidden
	}
	return target, nil
}

func (s *adminService) ListRoles(ctx context.Context, scope *domain.TenantScope) ([]*domain.Role, error) {
	if err := RequireLevel(scope, LevelCompanyRead); err != nil {
		return nil, err
	}
	roles, err := s.rolesRepo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", domain.ErrFetch)
	}
	return roles, nil
}

// ListRoleAssignments 查询目标用户的全部角色分配
// 目标用户先做租户归属检查，越界直接 FORBIDDEN
func (s *adminService) ListRoleAssignments(ctx context.Context, scope *domain.TenantScope, userID int64) ([]domain.AssignmentWithLevel, error) {
	if err := RequireLevel(scope, LevelCompanyAdmin); err != nil {
		return nil, err
	}
	if _, err := s.loadTargetUser(ctx, scope, userID); err != nil {
		return nil, err
	}

	assignments, err := s.rolesRepo.ListAssignmentsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role assignments: %w", domain.ErrFetch)
	}

	// 租户管理员只看得到自己公司范围内（含平台级）的分配
	if !scope.Platform {
		filtered := assignments[:0]
		for _, a := range assignments {
			if !a.CompanyID.Valid || scope.AllowsCompany(a.CompanyID.Int64) {
				filtered = append(filtered, a)
			}
		}
		assignments = filtered
	}
	return assignments, nil
}

// ListMenuRegistry 查询完整菜单注册表（含 min_level 与停用条目，供管理端配置白名单用）
func (s *adminService) ListMenuRegistry(ctx context.Context, scope *domain.TenantScope) ([]domain.MenuEntry, error) {
	if err := RequireLevel(scope, LevelCompanyAdmin); err != nil {
		return nil, err
	}
	entries, err := s.menusRepo.ListMenuEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu registry: %w", domain.ErrFetch)
	}
	return entries, nil
}

// CreateAssignmentRequest 角色分配请求
type CreateAssignmentRequest struct {
	UserID    int64
	RoleID    int64
	CompanyID *int64 // nil = 平台级分配（仅平台角色可发）
}

func (s *adminService) CreateRoleAssignment(ctx context.Context, scope *domain.TenantScope, req CreateAssignmentRequest) (int64, error) {
	if err := RequireLevel(scope, LevelCompanyAdmin); err != nil {
		return 0, err
	}

	a := &domain.RoleAssignment{UserID: req.UserID, RoleID: req.RoleID}
	if req.CompanyID == nil {
		// 平台级分配只能由平台角色创建
		if err := RequirePlatform(scope); err != nil {
			return 0, err
		}
	} else {
		companyID, err := ResolveWriteCompany(scope, req.CompanyID)
		if err != nil {
			return 0, err
		}
		a.CompanyID = sql.NullInt64{Int64: companyID, Valid: true}
	}

	role, err := s.rolesRepo.GetRole(ctx, req.RoleID)
	if err != nil {
		return 0, fmt.Errorf("role %d: %w", req.RoleID, domain.ErrNotFound)
	}
	// 不允许授出高于自己的等级
	if role.Level > scope.RoleLevel {
		return 0, fmt.Errorf("cannot grant role above own level: %w", domain.ErrForbidden)
	}

	assignmentID, err := s.rolesRepo.CreateAssignment(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("failed to create assignment: %w", domain.ErrFetch)
	}

	s.audit(ctx, scope, "role_assignment.create", "role_assignment", fmt.Sprintf("%d", assignmentID), req.CompanyID, map[string]any{
		"user_id": req.UserID,
		"role_id": req.RoleID,
	})

	// 分配变更立即可见
	if err := s.access.InvalidateScope(ctx, req.UserID); err != nil {
		s.logger.Warn("Failed to invalidate scope cache",
			zap.Int64("user_id", req.UserID),
			zap.Error(err),
		)
	}
	return assignmentID, nil
}

func (s *adminService) DeleteRoleAssignment(ctx context.Context, scope *domain.TenantScope, assignmentID int64) error {
	if err := RequireLevel(scope, LevelCompanyAdmin); err != nil {
		return err
	}

	a, err := s.rolesRepo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("assignment %d: %w", assignmentID, domain.ErrNotFound)
	}
	if a.CompanyID.Valid {
		if !scope.AllowsCompany(a.CompanyID.Int64) {
			return fmt.Errorf("assignment %d is outside caller scope: %w", assignmentID, domain.ErrForbidden)
		}
	} else if err := RequirePlatform(scope); err != nil {
		return err
	}

	if err := s.rolesRepo.DeleteAssignment(ctx, assignmentID); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", domain.ErrFetch)
	}

	s.audit(ctx, scope, "role_assignment.delete", "role_assignment", fmt.Sprintf("%d", assignmentID), nullableCompany(a.CompanyID), map[string]any{
		"user_id": a.UserID,
		"role_id": a.RoleID,
	})

	if err := s.access.InvalidateScope(ctx, a.UserID); err != nil {
		s.logger.Warn("Failed to invalidate scope cache",
			zap.Int64("user_id", a.UserID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *adminService) ListCompanies(ctx context.Context, scope *domain.TenantScope, status string, page, size int) ([]*domain.Company, int, error) {
	// 公司目录是平台级数据
	if err := RequirePlatform(scope); err != nil {
		return nil, 0, err
	}
	companies, total, err := s.companiesRepo.ListCompanies(ctx, status, page, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list companies: %w", domain.ErrFetch)
	}
	return companies, total, nil
}

// UpdateAllowlistRequest 菜单白名单整体替换请求
type UpdateAllowlistRequest struct {
	CompanyID int64
	MenuIDs   []int64 // 空 slice = 清除覆盖
}

func (s *adminService) UpdateMenuAllowlist(ctx context.Context, scope *domain.TenantScope, req UpdateAllowlistRequest) error {
	if err := RequireLevel(scope, LevelCompanyAdmin); err != nil {
		return err
	}
	if !scope.AllowsCompany(req.CompanyID) {
		return fmt.Errorf("company %d is outside caller scope: %w", req.CompanyID, domain.ErrForbidden)
	}

	if _, err := s.companiesRepo.GetCompany(ctx, req.CompanyID); err != nil {
		return fmt.Errorf("company %d: %w", req.CompanyID, domain.ErrNotFound)
	}
	if err := s.companiesRepo.UpdateMenuAllowlist(ctx, req.CompanyID, req.MenuIDs); err != nil {
		return fmt.Errorf("failed to update menu allowlist: %w", domain.ErrFetch)
	}

	s.audit(ctx, scope, "company.menu_allowlist.update", "company", fmt.Sprintf("%d", req.CompanyID), &req.CompanyID, map[string]any{
		"menu_ids": req.MenuIDs,
	})
	return nil
}

func (s *adminService) ListAudit(ctx context.Context, scope *domain.TenantScope, page, size int) ([]domain.AuditRecord, int, error) {
	if err := RequireLevel(scope, LevelCompanyRead); err != nil {
		return nil, 0, err
	}
	companyFilter, err := ReadCompanyFilter(scope)
	if err != nil {
		return nil, 0, err
	}

	records, total, err := s.auditRepo.ListAudit(ctx, companyFilter, page, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit records: %w", domain.ErrFetch)
	}
	return records, total, nil
}

// audit 落一条审计；失败只记日志，不阻断主操作
func (s *adminService) audit(ctx context.Context, scope *domain.TenantScope, action, targetKind, targetID string, companyID *int64, detail map[string]any) {
	rec := &domain.AuditRecord{
		ActorUserID: scope.UserID,
		Action:      action,
		TargetKind:  targetKind,
		TargetID:    targetID,
		CreatedAt:   time.Now(),
	}
	if companyID != nil {
		rec.CompanyID = sql.NullInt64{Int64: *companyID, Valid: true}
	}
	if detail != nil {
		if raw, err := json.Marshal(detail); err == nil {
			rec.Detail = raw
		}
	}
	if err := s.auditRepo.InsertAudit(ctx, rec); err != nil {
		s.logger.Error("Failed to write audit record",
			zap.String("action", action),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}

func nullableCompany(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
