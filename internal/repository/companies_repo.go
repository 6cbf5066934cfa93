package repository

import (
	"context"

	"erp-access/internal/domain"
)

// CompaniesRepository 公司（租户）与分支 Repository 接口
type CompaniesRepository interface {
	// GetCompany 查询单个公司
	GetCompany(ctx context.Context, companyID int64) (*domain.Company, error)

	// ListCompanies 查询公司列表（平台级数据）
	ListCompanies(ctx context.Context, status string, page, size int) ([]*domain.Company, int, error)

	// UpdateMenuAllowlist 整体替换公司的菜单白名单
	// menuIDs 为空 slice = 清除覆盖（回落到角色推导集合）
	UpdateMenuAllowlist(ctx context.Context, companyID int64, menuIDs []int64) error

	// GetBranch 查询单个分支
	GetBranch(ctx context.Context, branchID int64) (*domain.Branch, error)
}

// BranchResolver 分支归属解析
// 用户可能经员工（hrms.employees）或学员（ems.students）关联被收窄到某个分支
type BranchResolver interface {
	// BranchIDForUser 返回用户在指定公司内的分支归属；无关联时返回 nil
	BranchIDForUser(ctx context.Context, userID, companyID int64) (*int64, error)
}
