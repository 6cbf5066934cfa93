package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresBranchResolver 分支归属解析实现
// 先查员工关联（hrms.employees），再查学员关联（ems.students）；
// 两条线都没有记录时返回 nil（用户不受分支收窄）
type PostgresBranchResolver struct {
	db *sql.DB
}

func NewPostgresBranchResolver(db *sql.DB) *PostgresBranchResolver {
	return &PostgresBranchResolver{db: db}
}

var _ BranchResolver = (*PostgresBranchResolver)(nil)

func (r *PostgresBranchResolver) BranchIDForUser(ctx context.Context, userID, companyID int64) (*int64, error) {
	var branchID sql.NullInt64

	err := r.db.QueryRowContext(ctx,
		`SELECT branch_id FROM `+TableEmployees+` WHERE user_id = $1 AND company_id = $2 LIMIT 1`,
		userID, companyID,
	).Scan(&branchID)
	if err == nil {
		if branchID.Valid {
			v := branchID.Int64
			return &v, nil
		}
		return nil, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to resolve branch from employees: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT branch_id FROM `+TableStudents+` WHERE user_id = $1 AND company_id = $2 LIMIT 1`,
		userID, companyID,
	).Scan(&branchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve branch from students: %w", err)
	}

	if branchID.Valid {
		v := branchID.Int64
		return &v, nil
	}
	return nil, nil
}
