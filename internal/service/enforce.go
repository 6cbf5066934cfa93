package service

import (
	"fmt"

	"erp-access/internal/domain"
)

// 门禁等级约定（level 越大权限越高，判断恒为 level >= required）
const (
	LevelEmployee     = 10 // 普通员工：个人数据
	LevelBranchAdmin  = 40 // 分支管理员
	LevelCompanyRead  = 60 // 公司级读（用户列表、审计等）
	LevelCompanyAdmin = 80 // 公司级写（建用户、分配角色、改白名单）
)

// RequireLevel 等级门禁：fail-closed，scope 缺失 / 等级不足一律 FORBIDDEN
func RequireLevel(scope *domain.TenantScope, required int) error {
	if scope == nil {
		return domain.ErrForbidden
	}
	if scope.RoleLevel < required {
		return fmt.Errorf("requires level %d, caller has %d: %w", required, scope.RoleLevel, domain.ErrForbidden)
	}
	return nil
}

// RequirePlatform 平台级门禁：仅平台角色可跨公司操作
func RequirePlatform(scope *domain.TenantScope) error {
	if scope == nil || !scope.Platform {
		return domain.ErrForbidden
	}
	return nil
}

// ReadCompanyFilter 读请求的公司过滤：返回要注入查询的 company_id
// nil 表示不过滤（仅平台角色未选定公司视角时允许）
func ReadCompanyFilter(scope *domain.TenantScope) (*int64, error) {
	if scope == nil {
		return nil, domain.ErrForbidden
	}
	if scope.CompanyID != nil {
		cid := *scope.CompanyID
		return &cid, nil
	}
	if scope.Platform {
		return nil, nil
	}
	// 非平台且无公司：无分配用户，默认拒绝
	return nil, domain.ErrForbidden
}

// ResolveWriteCompany 写请求的目标公司裁决
// 请求体里的 company_id 与调用者 scope 冲突时立即 FORBIDDEN，不读任何数据
func ResolveWriteCompany(scope *domain.TenantScope, requested *int64) (int64, error) {
	if scope == nil {
		return 0, domain.ErrForbidden
	}
	if requested == nil {
		if scope.CompanyID == nil {
			return 0, fmt.Errorf("company_id is required for platform caller: %w", domain.ErrForbidden)
		}
		return *scope.CompanyID, nil
	}
	if !scope.AllowsCompany(*requested) {
		return 0, fmt.Errorf("company %d is outside caller scope: %w", *requested, domain.ErrForbidden)
	}
	return *requested, nil
}
