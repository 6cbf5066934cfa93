package domain

// TenantScope 单次请求解析出的访问上下文（派生数据，不落库）
// 由用户的角色分配计算得到：取适用分配中等级最高的一条
type TenantScope struct {
	UserID int64 `json:"user_id"`

	// CompanyID 为 nil 仅当：平台级分配未选定公司，或用户没有任何分配。
	// 所有租户级操作在继续之前都必须要求非 nil CompanyID。
	CompanyID *int64 `json:"company_id"`
	BranchID  *int64 `json:"branch_id,omitempty"` // 经 hrms.employees / ems.students 关联进一步收窄到分支时非 nil

	// RoleLevel 始终存在：无分配时为 0（默认拒绝姿态，后续门禁自然失败）
	RoleLevel int    `json:"role_level"`
	RoleName  string `json:"role_name,omitempty"`

	// Platform 平台级角色（来自 company_id 为 NULL 的分配），允许跨公司操作
	Platform bool `json:"platform"`
}

// AllowsCompany 调用者的 scope 是否允许访问指定公司的数据
func (s *TenantScope) AllowsCompany(companyID int64) bool {
	if s == nil {
		return false
	}
	if s.Platform {
		return true
	}
	return s.CompanyID != nil && *s.CompanyID == companyID
}
