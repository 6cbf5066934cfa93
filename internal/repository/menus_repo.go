package repository

import (
	"context"

	"erp-access/internal/domain"
)

// MenusRepository 菜单注册表 Repository 接口
type MenusRepository interface {
	// ListMenuEntries 查询完整菜单注册表
	// 必须按 sort_order 升序（并以 menu_id 二次排序）返回稳定顺序，
	// 保证 UI 导航顺序在请求之间不抖动
	ListMenuEntries(ctx context.Context) ([]domain.MenuEntry, error)
}

// AuditRepository 审计日志 Repository 接口
type AuditRepository interface {
	// InsertAudit 追加一条审计记录
	InsertAudit(ctx context.Context, rec *domain.AuditRecord) error

	// ListAudit 查询审计记录（倒序），companyID 为 nil 时不过滤公司
	ListAudit(ctx context.Context, companyID *int64, page, size int) ([]domain.AuditRecord, int, error)
}
