package repository

import (
	"context"

	"erp-access/internal/domain"
)

// UsersRepository 用户 Repository 接口
// 登录查询支持优先级：email_hash > user_account_hash
type UsersRepository interface {
	// GetUser 根据 userID 查询用户
	GetUser(ctx context.Context, userID int64) (*domain.User, error)

	// GetUserForLogin 根据 company_id, account_hash, password_hash 查询用户（用于登录）
	// companyID 为 nil 时查询平台账号（company_id IS NULL）
	// 返回完整信息：包括 company_name, domain
	GetUserForLogin(ctx context.Context, companyID *int64, accountHash, passwordHash []byte) (*UserLoginInfo, error)

	// SearchCompaniesForLogin 根据 account_hash, password_hash 搜索匹配的公司
	// （用于 company_id 自动解析，多公司账号登录时前端据此弹出选择）
	SearchCompaniesForLogin(ctx context.Context, accountHash, passwordHash []byte) ([]CompanyLoginMatch, error)

	// ListUsers 查询用户列表
	// companyID 为 nil 时不加公司过滤（仅平台级调用者允许）
	ListUsers(ctx context.Context, companyID *int64, filter UsersFilter, page, size int) ([]*domain.User, int, error)

	// CreateUser 创建用户，返回新 user_id
	CreateUser(ctx context.Context, user *domain.User) (int64, error)

	// UpdateUserPassword 更新密码哈希
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash []byte) error

	// UpdateUserStatus 更新状态（active / locked）
	UpdateUserStatus(ctx context.Context, userID int64, status string) error

	// UpdateUserLastLogin 更新用户的 last_login_at
	UpdateUserLastLogin(ctx context.Context, userID int64) error
}

// UserLoginInfo 用户登录信息（包含完整信息）
type UserLoginInfo struct {
	UserID      int64
	UserAccount string
	Nickname    string
	Status      string
	CompanyID   *int64 // nil = 平台账号
	CompanyName string
	Domain      string
	AccountType string // "email" | "account"
}

// CompanyLoginMatch 公司登录匹配信息
type CompanyLoginMatch struct {
	CompanyID   int64
	AccountType string // "email" | "account"
}

// UsersFilter 用户查询过滤器
type UsersFilter struct {
	Search string // 模糊搜索 user_account, nickname, email
	Status string // 可选，按 status 过滤
}
