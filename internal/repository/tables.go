package repository

// schema 限定的表名集中定义一次，调用点按名字引用
// （避免散落在各处的 "schema" + "." + "table" 手拼字符串）
const (
	TableUsers        = "app_auth.users"
	TableRoles        = "app_auth.roles"
	TableUserRoles    = "app_auth.user_roles"
	TableMenuRegistry = "app_auth.menu_registry"
	TableAuditLog     = "app_auth.audit_log"

	TableCompanies = "core.companies"
	TableBranches  = "core.branches"

	// 分支归属关联：员工（HR）与学员（教务）两条线
	TableEmployees = "hrms.employees"
	TableStudents  = "ems.students"
)
