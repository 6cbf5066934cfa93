package domain

import (
	"encoding/json"

	"github.com/lib/pq"
)

// Company 公司（租户）领域模型（对应 core.companies 表）
// 公司是数据隔离的顶层单位
type Company struct {
	// 主键
	CompanyID int64 `db:"company_id"`

	// 基本信息
	CompanyName string `db:"company_name"` // NOT NULL
	Domain      string `db:"domain"`       // UNIQUE, nullable

	// 访问控制覆盖
	// MenuAllowlist 为空 = 不覆盖，回落到角色推导出的菜单集合；
	// 非空 = 与角色集合取交集（只会收窄，不会扩大）
	MenuAllowlist  pq.Int64Array  `db:"menu_allowlist"`  // BIGINT[], nullable
	EnabledModules pq.StringArray `db:"enabled_modules"` // VARCHAR[], nullable: 启用的功能模块（core/hrms/ems/crm），空 = 全部

	// 状态：active / suspended / deleted
	Status string `db:"status"`

	// 扩展配置
	Metadata json.RawMessage `db:"metadata"` // JSONB, nullable
}

// Branch 分支领域模型（对应 core.branches 表）
// 公司下的子租户单位，继承并进一步收窄公司的设置
type Branch struct {
	BranchID   int64  `db:"branch_id"`
	CompanyID  int64  `db:"company_id"` // NOT NULL: 所属公司
	BranchName string `db:"branch_name"`

	// 与 Company 相同语义的收窄配置，作用在公司配置之后
	MenuAllowlist  pq.Int64Array  `db:"menu_allowlist"`
	EnabledModules pq.StringArray `db:"enabled_modules"`

	Status string `db:"status"`
}
