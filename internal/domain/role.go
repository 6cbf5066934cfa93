package domain

import (
	"database/sql"
	"time"
)

// Role 角色领域模型（对应 app_auth.roles 表，平台级静态参考数据）
type Role struct {
	RoleID      int64  `db:"role_id"`
	RoleName    string `db:"role_name"` // NOT NULL: 角色名称，用于程序引用（如 "CompanyAdmin"）
	Level       int    `db:"level"`     // NOT NULL: 数值权限等级，越大权限越高，门禁按 "level >= required" 判断
	Description string `db:"description"`

	IsActive sql.NullBool `db:"is_active"` // DEFAULT TRUE
}

// RoleAssignment 角色分配领域模型（对应 app_auth.user_roles 表）
// 一个用户可以在多个公司持有多条分配
type RoleAssignment struct {
	AssignmentID int64         `db:"assignment_id"`
	UserID       int64         `db:"user_id"`
	RoleID       int64         `db:"role_id"`
	CompanyID    sql.NullInt64 `db:"company_id"` // nullable: NULL = 平台级（全局）分配，可跨公司
	CreatedAt    time.Time     `db:"created_at"`
}

// AssignmentWithLevel 分配 + 角色等级（JOIN app_auth.roles 的查询结果）
// scope 解析只需要这几个字段
type AssignmentWithLevel struct {
	RoleAssignment
	RoleName  string `db:"role_name"`
	RoleLevel int    `db:"level"`
}
