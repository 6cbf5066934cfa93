package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"erp-access/internal/domain"
)

// MemoryMenusRepo 内存版菜单注册表 Repository
type MemoryMenusRepo struct {
	mu      sync.RWMutex
	entries map[int64]domain.MenuEntry
}

func NewMemoryMenusRepo() *MemoryMenusRepo {
	return &MemoryMenusRepo{entries: map[int64]domain.MenuEntry{}}
}

var _ MenusRepository = (*MemoryMenusRepo)(nil)

// SeedMenu 预置菜单项（内存模式启动和测试使用）
func (r *MemoryMenusRepo) SeedMenu(e domain.MenuEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.MenuID] = e
}

func (r *MemoryMenusRepo) ListMenuEntries(_ context.Context) ([]domain.MenuEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.MenuEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	// 与 SQL 实现同序：sort_order 升序，menu_id 兜底
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].MenuID < out[j].MenuID
	})
	return out, nil
}

// MemoryAuditRepo 内存版审计日志 Repository
type MemoryAuditRepo struct {
	mu      sync.RWMutex
	records []domain.AuditRecord
}

func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{}
}

var _ AuditRepository = (*MemoryAuditRepo)(nil)

func (r *MemoryAuditRepo) InsertAudit(_ context.Context, rec *domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nr := *rec
	if nr.AuditID == "" {
		nr.AuditID = uuid.NewString()
	}
	if nr.CreatedAt.IsZero() {
		nr.CreatedAt = time.Now()
	}
	r.records = append(r.records, nr)
	return nil
}

func (r *MemoryAuditRepo) ListAudit(_ context.Context, companyID *int64, page, size int) ([]domain.AuditRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []domain.AuditRecord
	for _, rec := range r.records {
		if companyID != nil && (!rec.CompanyID.Valid || rec.CompanyID.Int64 != *companyID) {
			continue
		}
		all = append(all, rec)
	}
	// 倒序：最新在前
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
