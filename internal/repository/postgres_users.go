package repository

import (
	"context"
	"database/sql"
	"fmt"

	"erp-access/internal/domain"
)

// PostgresUsersRepository 用户 Repository 实现
type PostgresUsersRepository struct {
	db *sql.DB
}

// NewPostgresUsersRepository 创建用户 Repository
func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `
	u.user_id,
	u.company_id,
	u.user_account,
	u.user_account_hash,
	COALESCE(u.nickname,'') as nickname,
	COALESCE(u.email,'') as email,
	COALESCE(u.status,'active') as status,
	u.last_login_at
`

// GetUser 根据 userID 查询用户
func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM ` + TableUsers + ` u WHERE u.user_id = $1`

	var u domain.User
	var nickname, email string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&u.UserID,
		&u.CompanyID,
		&u.UserAccount,
		&u.UserAccountHash,
		&nickname,
		&email,
		&u.Status,
		&u.LastLoginAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found: user_id=%d", userID)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if nickname != "" {
		u.Nickname = sql.NullString{String: nickname, Valid: true}
	}
	if email != "" {
		u.Email = sql.NullString{String: email, Valid: true}
	}
	return &u, nil
}

// GetUserForLogin 根据 company_id, account_hash, password_hash 查询用户（用于登录）
// companyID 为 nil 时查询平台账号（company_id IS NULL）
func (r *PostgresUsersRepository) GetUserForLogin(ctx context.Context, companyID *int64, accountHash, passwordHash []byte) (*UserLoginInfo, error) {
	if len(accountHash) == 0 || len(passwordHash) == 0 {
		return nil, fmt.Errorf("account_hash and password_hash are required")
	}

	companyCond := `(($1::bigint IS NULL AND u.company_id IS NULL) OR u.company_id = $1::bigint)`
	args := []any{companyID, accountHash, passwordHash}

	query := `
		SELECT u.user_id,
		       u.user_account,
		       COALESCE(u.nickname,''),
		       COALESCE(u.status,'active'),
		       u.company_id,
		       COALESCE(c.company_name,''),
		       COALESCE(c.domain,''),
		       CASE
		         WHEN u.email_hash = $2 THEN 'email'
		         ELSE 'account'
		       END as account_type
		  FROM ` + TableUsers + ` u
		  LEFT JOIN ` + TableCompanies + ` c ON c.company_id = u.company_id
		 WHERE ` + companyCond + `
		   AND u.password_hash = $3
		   AND (u.email_hash = $2 OR u.user_account_hash = $2)
		 ORDER BY
		   CASE
		     WHEN u.email_hash = $2 THEN 1
		     WHEN u.user_account_hash = $2 THEN 2
		     ELSE 3
		   END ASC
		 LIMIT 1
	`

	var info UserLoginInfo
	var cid sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&info.UserID,
		&info.UserAccount,
		&info.Nickname,
		&info.Status,
		&cid,
		&info.CompanyName,
		&info.Domain,
		&info.AccountType,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user for login: %w", err)
	}
	if cid.Valid {
		v := cid.Int64
		info.CompanyID = &v
	}
	return &info, nil
}

// SearchCompaniesForLogin 根据 account_hash, password_hash 搜索匹配的公司
func (r *PostgresUsersRepository) SearchCompaniesForLogin(ctx context.Context, accountHash, passwordHash []byte) ([]CompanyLoginMatch, error) {
	if len(accountHash) == 0 || len(passwordHash) == 0 {
		return nil, fmt.Errorf("account_hash and password_hash are required")
	}

	query := `
		SELECT DISTINCT u.company_id,
		       CASE
		         WHEN u.email_hash = $1 THEN 'email'
		         ELSE 'account'
		       END as account_type,
		       CASE
		         WHEN u.email_hash = $1 THEN 1
		         WHEN u.user_account_hash = $1 THEN 2
		         ELSE 3
		       END as priority
		  FROM ` + TableUsers + ` u
		 WHERE u.password_hash = $2
		   AND u.company_id IS NOT NULL
		   AND COALESCE(u.status,'active') = 'active'
		   AND (u.email_hash = $1 OR u.user_account_hash = $1)
		 ORDER BY priority ASC, u.company_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, accountHash, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to search companies for login: %w", err)
	}
	defer rows.Close()

	var matches []CompanyLoginMatch
	for rows.Next() {
		var match CompanyLoginMatch
		var priority int
		if err := rows.Scan(&match.CompanyID, &match.AccountType, &priority); err != nil {
			return nil, fmt.Errorf("failed to scan company match: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate company matches: %w", err)
	}

	return matches, nil
}

// ListUsers 查询用户列表
func (r *PostgresUsersRepository) ListUsers(ctx context.Context, companyID *int64, filter UsersFilter, page, size int) ([]*domain.User, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if companyID != nil {
		args = append(args, *companyID)
		where += fmt.Sprintf(` AND u.company_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND COALESCE(u.status,'active') = $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where += fmt.Sprintf(` AND (u.user_account ILIKE $%d OR u.nickname ILIKE $%d OR u.email ILIKE $%d)`, n, n, n)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM ` + TableUsers + ` u` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	args = append(args, size, (page-1)*size)
	query := `SELECT ` + userColumns + ` FROM ` + TableUsers + ` u` + where +
		fmt.Sprintf(` ORDER BY u.user_id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var u domain.User
		var nickname, email string
		if err := rows.Scan(
			&u.UserID,
			&u.CompanyID,
			&u.UserAccount,
			&u.UserAccountHash,
			&nickname,
			&email,
			&u.Status,
			&u.LastLoginAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		if nickname != "" {
			u.Nickname = sql.NullString{String: nickname, Valid: true}
		}
		if email != "" {
			u.Email = sql.NullString{String: email, Valid: true}
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, total, nil
}

// CreateUser 创建用户，返回新 user_id
func (r *PostgresUsersRepository) CreateUser(ctx context.Context, user *domain.User) (int64, error) {
	if user.UserAccount == "" || len(user.UserAccountHash) == 0 {
		return 0, fmt.Errorf("user_account and user_account_hash are required")
	}
	if user.Status == "" {
		user.Status = "active"
	}

	query := `
		INSERT INTO ` + TableUsers + `
			(company_id, user_account, user_account_hash, password_hash, nickname, email, email_hash, status)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), $7, $8)
		RETURNING user_id
	`

	var userID int64
	err := r.db.QueryRowContext(ctx, query,
		user.CompanyID,
		user.UserAccount,
		user.UserAccountHash,
		user.PasswordHash,
		user.Nickname.String,
		user.Email.String,
		user.EmailHash,
		user.Status,
	).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	return userID, nil
}

// UpdateUserPassword 更新密码哈希
func (r *PostgresUsersRepository) UpdateUserPassword(ctx context.Context, userID int64, passwordHash []byte) error {
	if len(passwordHash) == 0 {
		return fmt.Errorf("password_hash is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE `+TableUsers+` SET password_hash = $2 WHERE user_id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: user_id=%d", userID)
	}

	return nil
}

// UpdateUserStatus 更新状态（active / locked）
func (r *PostgresUsersRepository) UpdateUserStatus(ctx context.Context, userID int64, status string) error {
	if status != "active" && status != "locked" {
		return fmt.Errorf("invalid status: %s", status)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE `+TableUsers+` SET status = $2 WHERE user_id = $1`,
		userID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: user_id=%d", userID)
	}

	return nil
}

// UpdateUserLastLogin 更新用户的 last_login_at
func (r *PostgresUsersRepository) UpdateUserLastLogin(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE `+TableUsers+` SET last_login_at = NOW() WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update last_login_at: %w", err)
	}

	return nil
}
