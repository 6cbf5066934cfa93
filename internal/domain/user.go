package domain

import (
	"database/sql"
)

// User 用户领域模型（对应 app_auth.users 表）
type User struct {
	// 主键和主属公司
	UserID    int64         `db:"user_id"`
	CompanyID sql.NullInt64 `db:"company_id"` // nullable: NULL = 平台账号（不属于任何公司）

	// 账号信息
	// 登录凭证只存哈希（前端按 crypto.ts 规则先行 SHA-256）
	UserAccount     string `db:"user_account"`      // NOT NULL
	UserAccountHash []byte `db:"user_account_hash"` // NOT NULL: sha256(lower(account))
	PasswordHash    []byte `db:"password_hash"`     // nullable: 初次提供前可为空

	// 基本信息
	Nickname  sql.NullString `db:"nickname"`   // nullable
	Email     sql.NullString `db:"email"`      // nullable
	EmailHash []byte         `db:"email_hash"` // nullable: 支持邮箱登录

	// 状态：active / locked
	// 锁定的账号禁止登录，但行不做物理删除
	Status string `db:"status"`

	LastLoginAt sql.NullTime `db:"last_login_at"` // nullable
}
