package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// AuditRecord 审计记录（对应 app_auth.audit_log 表）
// 所有经过门禁的管理类变更都要落一条审计；
// 旧系统里绕开权限层直接改数据的一次性脚本一律收敛到这条路径
type AuditRecord struct {
	AuditID     string `db:"audit_id"` // UUID
	ActorUserID int64  `db:"actor_user_id"`

	Action     string `db:"action"`      // 如 "role_assignment.create", "company.menu_allowlist.update"
	TargetKind string `db:"target_kind"` // 如 "user", "role_assignment", "company"
	TargetID   string `db:"target_id"`

	CompanyID sql.NullInt64   `db:"company_id"` // nullable: 平台级操作为 NULL
	Detail    json.RawMessage `db:"detail"`     // JSONB, nullable: 变更前后的关键字段

	CreatedAt time.Time `db:"created_at"`
}
