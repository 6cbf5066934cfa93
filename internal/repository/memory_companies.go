package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"erp-access/internal/domain"
)

// MemoryCompaniesRepo 内存版公司/分支 Repository
type MemoryCompaniesRepo struct {
	mu        sync.RWMutex
	companies map[int64]domain.Company
	branches  map[int64]domain.Branch
}

func NewMemoryCompaniesRepo() *MemoryCompaniesRepo {
	return &MemoryCompaniesRepo{
		companies: map[int64]domain.Company{},
		branches:  map[int64]domain.Branch{},
	}
}

var _ CompaniesRepository = (*MemoryCompaniesRepo)(nil)

// SeedCompany 预置公司（内存模式启动和测试使用）
func (r *MemoryCompaniesRepo) SeedCompany(c domain.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[c.CompanyID] = c
}

// SeedBranch 预置分支
func (r *MemoryCompaniesRepo) SeedBranch(b domain.Branch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[b.BranchID] = b
}

func (r *MemoryCompaniesRepo) GetCompany(_ context.Context, companyID int64) (*domain.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("company not found: company_id=%d: %w", companyID, domain.ErrNotFound)
	}
	return &c, nil
}

func (r *MemoryCompaniesRepo) ListCompanies(_ context.Context, status string, page, size int) ([]*domain.Company, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []domain.Company
	for _, c := range r.companies {
		if status != "" && c.Status != status {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CompanyID < all[j].CompanyID })

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

	out := make([]*domain.Company, 0, end-start)
	for i := start; i < end; i++ {
		c := all[i]
		out = append(out, &c)
	}
	return out, total, nil
}

func (r *MemoryCompaniesRepo) UpdateMenuAllowlist(_ context.Context, companyID int64, menuIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.companies[companyID]
	if !ok {
		return fmt.Errorf("company not found: company_id=%d: %w", companyID, domain.ErrNotFound)
	}
	c.MenuAllowlist = append(c.MenuAllowlist[:0:0], menuIDs...)
	r.companies[companyID] = c
	return nil
}

func (r *MemoryCompaniesRepo) GetBranch(_ context.Context, branchID int64) (*domain.Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.branches[branchID]
	if !ok {
		return nil, fmt.Errorf("branch not found: branch_id=%d: %w", branchID, domain.ErrNotFound)
	}
	return &b, nil
}

// MemoryBranchResolver 内存版分支归属解析（userID+companyID -> branchID）
type MemoryBranchResolver struct {
	mu    sync.RWMutex
	links map[string]int64 // "userID:companyID" -> branchID
}

func NewMemoryBranchResolver() *MemoryBranchResolver {
	return &MemoryBranchResolver{links: map[string]int64{}}
}

var _ BranchResolver = (*MemoryBranchResolver)(nil)

// SeedLink 预置用户的分支归属
func (r *MemoryBranchResolver) SeedLink(userID, companyID, branchID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[fmt.Sprintf("%d:%d", userID, companyID)] = branchID
}

func (r *MemoryBranchResolver) BranchIDForUser(_ context.Context, userID, companyID int64) (*int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	branchID, ok := r.links[fmt.Sprintf("%d:%d", userID, companyID)]
	if !ok {
		return nil, nil
	}
	return &branchID, nil
}
