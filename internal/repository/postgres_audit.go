package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"erp-access/internal/domain"
)

// PostgresAuditRepository 审计日志 Repository 实现
type PostgresAuditRepository struct {
	db *sql.DB
}

// NewPostgresAuditRepository 创建审计 Repository
func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

// 确保实现了接口
var _ AuditRepository = (*PostgresAuditRepository)(nil)

// InsertAudit 追加一条审计记录
func (r *PostgresAuditRepository) InsertAudit(ctx context.Context, rec *domain.AuditRecord) error {
	if rec.AuditID == "" {
		rec.AuditID = uuid.NewString()
	}
	if rec.Action == "" {
		return fmt.Errorf("action is required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+TableAuditLog+`
		     (audit_id, actor_user_id, action, target_kind, target_id, company_id, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.AuditID,
		rec.ActorUserID,
		rec.Action,
		rec.TargetKind,
		rec.TargetID,
		rec.CompanyID,
		rec.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

// ListAudit 查询审计记录（created_at 倒序）
func (r *PostgresAuditRepository) ListAudit(ctx context.Context, companyID *int64, page, size int) ([]domain.AuditRecord, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if companyID != nil {
		args = append(args, *companyID)
		where += fmt.Sprintf(` AND company_id = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TableAuditLog+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit records: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	args = append(args, size, (page-1)*size)
	query := `
		SELECT audit_id, actor_user_id, action, target_kind, target_id, company_id, detail, created_at
		  FROM ` + TableAuditLog + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var detail sql.NullString
		if err := rows.Scan(
			&rec.AuditID,
			&rec.ActorUserID,
			&rec.Action,
			&rec.TargetKind,
			&rec.TargetID,
			&rec.CompanyID,
			&detail,
			&rec.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if detail.Valid {
			rec.Detail = []byte(detail.String)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate audit records: %w", err)
	}

	return records, total, nil
}
