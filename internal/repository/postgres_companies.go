package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"erp-access/internal/domain"
)

// PostgresCompaniesRepository 公司与分支 Repository 实现
type PostgresCompaniesRepository struct {
	db *sql.DB
}

// NewPostgresCompaniesRepository 创建公司 Repository
func NewPostgresCompaniesRepository(db *sql.DB) *PostgresCompaniesRepository {
	return &PostgresCompaniesRepository{db: db}
}

// 确保实现了接口
var _ CompaniesRepository = (*PostgresCompaniesRepository)(nil)

// GetCompany 查询单个公司
func (r *PostgresCompaniesRepository) GetCompany(ctx context.Context, companyID int64) (*domain.Company, error) {
	query := `
		SELECT company_id,
		       company_name,
		       COALESCE(domain,''),
		       COALESCE(menu_allowlist, '{}'),
		       COALESCE(enabled_modules, '{}'),
		       COALESCE(status,'active'),
		       metadata
		  FROM ` + TableCompanies + `
		 WHERE company_id = $1
	`

	var c domain.Company
	err := r.db.QueryRowContext(ctx, query, companyID).Scan(
		&c.CompanyID,
		&c.CompanyName,
		&c.Domain,
		(*pq.Int64Array)(&c.MenuAllowlist),
		(*pq.StringArray)(&c.EnabledModules),
		&c.Status,
		&c.Metadata,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("company not found: company_id=%d: %w", companyID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query company: %w", err)
	}

	return &c, nil
}

// ListCompanies 查询公司列表（平台级数据）
func (r *PostgresCompaniesRepository) ListCompanies(ctx context.Context, status string, page, size int) ([]*domain.Company, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(` AND COALESCE(status,'active') = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TableCompanies+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count companies: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	args = append(args, size, (page-1)*size)
	query := `
		SELECT company_id,
		       company_name,
		       COALESCE(domain,''),
		       COALESCE(menu_allowlist, '{}'),
		       COALESCE(enabled_modules, '{}'),
		       COALESCE(status,'active'),
		       metadata
		  FROM ` + TableCompanies + where +
		fmt.Sprintf(` ORDER BY company_name ASC, company_id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*domain.Company
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(
			&c.CompanyID,
			&c.CompanyName,
			&c.Domain,
			(*pq.Int64Array)(&c.MenuAllowlist),
			(*pq.StringArray)(&c.EnabledModules),
			&c.Status,
			&c.Metadata,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate companies: %w", err)
	}

	return companies, total, nil
}

// UpdateMenuAllowlist 整体替换公司的菜单白名单
func (r *PostgresCompaniesRepository) UpdateMenuAllowlist(ctx context.Context, companyID int64, menuIDs []int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE `+TableCompanies+` SET menu_allowlist = $2 WHERE company_id = $1`,
		companyID, pq.Int64Array(menuIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to update menu allowlist: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("company not found: company_id=%d: %w", companyID, domain.ErrNotFound)
	}

	return nil
}

// GetBranch 查询单个分支
func (r *PostgresCompaniesRepository) GetBranch(ctx context.Context, branchID int64) (*domain.Branch, error) {
	query := `
		SELECT branch_id,
		       company_id,
		       branch_name,
		       COALESCE(menu_allowlist, '{}'),
		       COALESCE(enabled_modules, '{}'),
		       COALESCE(status,'active')
		  FROM ` + TableBranches + `
		 WHERE branch_id = $1
	`

	var b domain.Branch
	err := r.db.QueryRowContext(ctx, query, branchID).Scan(
		&b.BranchID,
		&b.CompanyID,
		&b.BranchName,
		(*pq.Int64Array)(&b.MenuAllowlist),
		(*pq.StringArray)(&b.EnabledModules),
		&b.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("branch not found: branch_id=%d: %w", branchID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query branch: %w", err)
	}

	return &b, nil
}
