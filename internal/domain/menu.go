package domain

import (
	"database/sql"
)

// MenuEntry 菜单注册表条目（对应 app_auth.menu_registry 表，平台级静态参考数据）
// 注册表是全部可导航功能的主目录，sort_order 决定稳定的展示顺序
type MenuEntry struct {
	MenuID   int64  `db:"menu_id"`
	MenuCode string `db:"menu_code"` // NOT NULL, UNIQUE: 程序引用标识（如 "hrms.payroll"）
	Module   string `db:"module"`    // NOT NULL: 所属功能模块（core/hrms/ems/crm）

	SortOrder int `db:"sort_order"` // NOT NULL: 升序排序，保证导航顺序在请求之间不抖动
	MinLevel  int `db:"min_level"`  // NOT NULL: 可见所需的最低角色等级

	IsActive sql.NullBool `db:"is_active"` // DEFAULT TRUE
}
