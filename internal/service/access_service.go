package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"erp-access/internal/domain"
	"erp-access/internal/repository"
	"erp-access/internal/store"
)

// AccessService 租户 scope 解析 + 菜单计算
// scope 是派生数据：每次请求从角色分配算出，只做短 TTL 缓存
type AccessService interface {
	// ResolveScope 解析用户的租户 scope
	// issuedAt 是令牌签发时间，进缓存键：重新登录必然拿到全新解析
	// companyHint 非 nil 时选定该公司视角（多公司用户经 X-Company-Id 切换）
	ResolveScope(ctx context.Context, userID int64, issuedAt time.Time, companyHint *int64) (*domain.TenantScope, error)

	// ComputeMenus 计算 scope 可见的菜单集合（保持注册表 sort_order 顺序）
	ComputeMenus(ctx context.Context, scope *domain.TenantScope) ([]domain.MenuEntry, error)

	// InvalidateScope 显式失效用户的全部 scope 缓存
	// 角色分配、公司白名单等变更后必须调用，保证下次请求重新解析
	InvalidateScope(ctx context.Context, userID int64) error
}

type accessService struct {
	rolesRepo     repository.RolesRepository
	companiesRepo repository.CompaniesRepository
	menusRepo     repository.MenusRepository
	branches      repository.BranchResolver
	cache         store.KV
	cacheTTL      time.Duration
	logger        *zap.Logger
}

// NewAccessService 创建 AccessService 实例
func NewAccessService(
	rolesRepo repository.RolesRepository,
	companiesRepo repository.CompaniesRepository,
	menusRepo repository.MenusRepository,
	branches repository.BranchResolver,
	cache store.KV,
	cacheTTL time.Duration,
	logger *zap.Logger,
) AccessService {
	return &accessService{
		rolesRepo:     rolesRepo,
		companiesRepo: companiesRepo,
		menusRepo:     menusRepo,
		branches:      branches,
		cache:         cache,
		cacheTTL:      cacheTTL,
		logger:        logger,
	}
}

var _ AccessService = (*accessService)(nil)

// scopeCacheKey 同一用户的全部键共享 "scope:{userID}:" 前缀，便于按 pattern 失效
// 键里带令牌签发时间：同一用户重新登录（新 iat）不会命中旧令牌的缓存
func scopeCacheKey(userID int64, issuedAt time.Time, companyHint *int64) string {
	iat := "-"
	if !issuedAt.IsZero() {
		iat = fmt.Sprintf("%d", issuedAt.Unix())
	}
	if companyHint == nil {
		return fmt.Sprintf("scope:%d:%s:-", userID, iat)
	}
	return fmt.Sprintf("scope:%d:%s:%d", userID, iat, *companyHint)
}

func (s *accessService) ResolveScope(ctx context.Context, userID int64, issuedAt time.Time, companyHint *int64) (*domain.TenantScope, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}

	// 1. 缓存查找；缓存层故障按 miss 处理，不影响解析
	key := scopeCacheKey(userID, issuedAt, companyHint)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached domain.TenantScope
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return &cached, nil
			}
		} else if err != store.ErrMiss {
			s.logger.Warn("Scope cache read failed, resolving from source",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}

	scope, err := s.resolveScopeFromSource(ctx, userID, companyHint)
	if err != nil {
		return nil, err
	}

	// 2. 回填缓存（失败只记日志）
	if s.cache != nil && s.cacheTTL > 0 {
		if raw, jsonErr := json.Marshal(scope); jsonErr == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
				s.logger.Warn("Scope cache write failed",
					zap.Int64("user_id", userID),
					zap.Error(err),
				)
			}
		}
	}

	return scope, nil
}

// resolveScopeFromSource 从角色分配计算 scope（不走缓存）
func (s *accessService) resolveScopeFromSource(ctx context.Context, userID int64, companyHint *int64) (*domain.TenantScope, error) {
	assignments, err := s.rolesRepo.ListAssignmentsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role assignments: %w", domain.ErrFetch)
	}

	// 无任何分配：level 0 + 无公司，后续门禁自然全部拒绝
	if len(assignments) == 0 {
		return &domain.TenantScope{UserID: userID, RoleLevel: 0}, nil
	}

	// 指定公司视角时，只保留适用的分配：该公司的 + 平台级的
	applicable := assignments
	if companyHint != nil {
		applicable = applicable[:0:0]
		for _, a := range assignments {
			if !a.CompanyID.Valid || a.CompanyID.Int64 == *companyHint {
				applicable = append(applicable, a)
			}
		}
		if len(applicable) == 0 {
			s.logger.Warn("Scope resolution denied: no assignment for requested company",
				zap.Int64("user_id", userID),
				zap.Int64("company_id", *companyHint),
			)
			return nil, fmt.Errorf("no role assignment for company %d: %w", *companyHint, domain.ErrForbidden)
		}
	}

	// 选优：等级最高；同级取最新创建（再以 assignment_id 兜底保证确定性）
	best := applicable[0]
	for _, a := range applicable[1:] {
		switch {
		case a.RoleLevel > best.RoleLevel:
			best = a
		case a.RoleLevel == best.RoleLevel && a.CreatedAt.After(best.CreatedAt):
			best = a
		case a.RoleLevel == best.RoleLevel && a.CreatedAt.Equal(best.CreatedAt) && a.AssignmentID > best.AssignmentID:
			best = a
		}
	}

	scope := &domain.TenantScope{
		UserID:    userID,
		RoleLevel: best.RoleLevel,
		RoleName:  best.RoleName,
		Platform:  !best.CompanyID.Valid,
	}
	switch {
	case best.CompanyID.Valid:
		cid := best.CompanyID.Int64
		scope.CompanyID = &cid
	case companyHint != nil:
		// 平台级角色选定了公司视角
		cid := *companyHint
		scope.CompanyID = &cid
	}

	// 分支归属收窄（平台账号不做分支绑定）
	if scope.CompanyID != nil && !scope.Platform {
		branchID, err := s.branches.BranchIDForUser(ctx, userID, *scope.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve branch: %w", domain.ErrFetch)
		}
		scope.BranchID = branchID
	}

	return scope, nil
}

func (s *accessService) ComputeMenus(ctx context.Context, scope *domain.TenantScope) ([]domain.MenuEntry, error) {
	if scope == nil {
		return nil, domain.ErrUnauthorized
	}

	// 1. 完整注册表（已按 sort_order 排序）
	entries, err := s.menusRepo.ListMenuEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu registry: %w", domain.ErrFetch)
	}

	// 2. 等级过滤：min_level <= 调用者等级；禁用条目直接不可见
	visible := make([]domain.MenuEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsActive.Valid && !e.IsActive.Bool {
			continue
		}
		if e.MinLevel > scope.RoleLevel {
			continue
		}
		visible = append(visible, e)
	}

	// 3. 公司覆盖：白名单取交集（只收窄），启用模块过滤
	//    白名单里指向不存在条目的 id 交集后自然消失，不报错
	if scope.CompanyID != nil {
		company, err := s.companiesRepo.GetCompany(ctx, *scope.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load company %d: %w", *scope.CompanyID, domain.ErrFetch)
		}
		visible = intersectAllowlist(visible, company.MenuAllowlist)
		visible = filterModules(visible, company.EnabledModules)
	}

	// 4. 分支覆盖：在公司结果之上再收窄一层
	if scope.BranchID != nil {
		branch, err := s.companiesRepo.GetBranch(ctx, *scope.BranchID)
		if err != nil {
			return nil, fmt.Errorf("failed to load branch %d: %w", *scope.BranchID, domain.ErrFetch)
		}
		visible = intersectAllowlist(visible, branch.MenuAllowlist)
		visible = filterModules(visible, branch.EnabledModules)
	}

	return visible, nil
}

// intersectAllowlist 白名单交集；空白名单 = 不覆盖，原样返回
func intersectAllowlist(entries []domain.MenuEntry, allowlist []int64) []domain.MenuEntry {
	if len(allowlist) == 0 {
		return entries
	}
	allowed := make(map[int64]struct{}, len(allowlist))
	for _, id := range allowlist {
		allowed[id] = struct{}{}
	}
	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := allowed[e.MenuID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// filterModules 按启用模块过滤；空列表 = 全部启用
func filterModules(entries []domain.MenuEntry, modules []string) []domain.MenuEntry {
	if len(modules) == 0 {
		return entries
	}
	enabled := make(map[string]struct{}, len(modules))
	for _, m := range modules {
		enabled[m] = struct{}{}
	}
	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := enabled[e.Module]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (s *accessService) InvalidateScope(ctx context.Context, userID int64) error {
	if s.cache == nil {
		return nil
	}

	pattern := fmt.Sprintf("scope:%d:*", userID)
	keys, err := s.cache.ScanKeys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to scan scope cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete scope cache keys: %w", err)
	}

	s.logger.Info("Scope cache invalidated",
		zap.Int64("user_id", userID),
		zap.Int("keys", len(keys)),
	)
	return nil
}
