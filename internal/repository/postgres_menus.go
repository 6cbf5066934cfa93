package repository

import (
	"context"
	"database/sql"
	"fmt"

	"erp-access/internal/domain"
)

// PostgresMenusRepository 菜单注册表 Repository 实现
type PostgresMenusRepository struct {
	db *sql.DB
}

// NewPostgresMenusRepository 创建菜单 Repository
func NewPostgresMenusRepository(db *sql.DB) *PostgresMenusRepository {
	return &PostgresMenusRepository{db: db}
}

// 确保实现了接口
var _ MenusRepository = (*PostgresMenusRepository)(nil)

// ListMenuEntries 查询完整菜单注册表（sort_order 升序，menu_id 二次排序）
func (r *PostgresMenusRepository) ListMenuEntries(ctx context.Context) ([]domain.MenuEntry, error) {
	query := `
		SELECT menu_id, menu_code, module, sort_order, min_level, is_active
		  FROM ` + TableMenuRegistry + `
		 ORDER BY sort_order ASC, menu_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu registry: %w", err)
	}
	defer rows.Close()

	var entries []domain.MenuEntry
	for rows.Next() {
		var e domain.MenuEntry
		if err := rows.Scan(
			&e.MenuID,
			&e.MenuCode,
			&e.Module,
			&e.SortOrder,
			&e.MinLevel,
			&e.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan menu entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate menu entries: %w", err)
	}

	return entries, nil
}
