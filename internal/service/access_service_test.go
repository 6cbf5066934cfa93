package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"erp-access/internal/domain"
	"erp-access/internal/repository"
	"erp-access/internal/store"
)

type accessFixture struct {
	roles     *repository.MemoryRolesRepo
	companies *repository.MemoryCompaniesRepo
	menus     *repository.MemoryMenusRepo
	branches  *repository.MemoryBranchResolver
	kv        *store.MemoryKV
	svc       AccessService
}

func newAccessFixture(t *testing.T, cacheTTL time.Duration) *accessFixture {
	t.Helper()
	f := &accessFixture{
		roles:     repository.NewMemoryRolesRepo(),
		companies: repository.NewMemoryCompaniesRepo(),
		menus:     repository.NewMemoryMenusRepo(),
		branches:  repository.NewMemoryBranchResolver(),
		kv:        store.NewMemoryKV(),
	}
	f.roles.SeedRole(domain.Role{RoleID: 1, RoleName: "SystemAdmin", Level: 100})
	f.roles.SeedRole(domain.Role{RoleID: 2, RoleName: "CompanyAdmin", Level: 80})
	f.roles.SeedRole(domain.Role{RoleID: 3, RoleName: "BranchAdmin", Level: 40})
	f.roles.SeedRole(domain.Role{RoleID: 4, RoleName: "Employee", Level: 10})

	f.companies.SeedCompany(domain.Company{CompanyID: 1, CompanyName: "Acme", Status: "active"})
	f.companies.SeedCompany(domain.Company{CompanyID: 2, CompanyName: "Globex", Status: "active"})

	f.svc = NewAccessService(f.roles, f.companies, f.menus, f.branches, f.kv, cacheTTL, zap.NewNop())
	return f
}

func (f *accessFixture) assign(t *testing.T, userID, roleID int64, companyID *int64, createdAt time.Time) {
	t.Helper()
	a := &domain.RoleAssignment{UserID: userID, RoleID: roleID, CreatedAt: createdAt}
	if companyID != nil {
		a.CompanyID = sql.NullInt64{Int64: *companyID, Valid: true}
	}
	_, err := f.roles.CreateAssignment(context.Background(), a)
	require.NoError(t, err)
}

func int64p(v int64) *int64 { return &v }

func TestResolveScope_NoAssignments(t *testing.T) {
	f := newAccessFixture(t, 0)

	scope, err := f.svc.ResolveScope(context.Background(), 5, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), scope.UserID)
	assert.Equal(t, 0, scope.RoleLevel)
	assert.Nil(t, scope.CompanyID)
	assert.False(t, scope.Platform)
}

func TestResolveScope_MaxLevelWins(t *testing.T) {
	f := newAccessFixture(t, 0)
	now := time.Now()
	f.assign(t, 5, 4, int64p(1), now.Add(-time.Hour))   // Employee @1
	f.assign(t, 5, 2, int64p(2), now.Add(-2*time.Hour)) // CompanyAdmin @2

	scope, err := f.svc.ResolveScope(context.Background(), 5, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 80, scope.RoleLevel)
	assert.Equal(t, "CompanyAdmin", scope.RoleName)
	require.NotNil(t, scope.CompanyID)
	assert.Equal(t, int64(2), *scope.CompanyID)
	assert.False(t, scope.Platform)
}

func TestResolveScope_TieNewestWins(t *testing.T) {
	f := newAccessFixture(t, 0)
	now := time.Now()
	f.assign(t, 5, 2, int64p(1), now.Add(-2*time.Hour))
	f.assign(t, 5, 2, int64p(2), now.Add(-time.Hour)) // same level, newer

	scope, err := f.svc.ResolveScope(context.Background(), 5, time.Time{}, nil)
	require.NoError(t, err)
	require.NotNil(t, scope.CompanyID)
	assert.Equal(t, int64(2), *scope.CompanyID)
}

func TestResolveScope_CompanyHintFilters(t *testing.T) {
	f := newAccessFixture(t, 0)
	now := time.Now()
	f.assign(t, 5, 2, int64p(1), now) // CompanyAdmin @1
	f.assign(t, 5, 4, int64p(2), now) // Employee @2

	// 切到公司 2：该公司只有 Employee 分配
	scope, err := f.svc.ResolveScope(context.Background(), 5, time.Time{}, int64p(2))
	require.NoError(t, err)
	assert.Equal(t, 10, scope.RoleLevel)
	require.NotNil(t, scope.CompanyID)
	assert.Equal(t, int64(2), *scope.CompanyID)
}

func TestResolveScope_HintWithoutAssignmentForbidden(t *testing.T) {
	f := newAccessFixture(t, 0)
	f.assign(t, 5, 2, int64p(1), time.Now())

	_, err := f.svc.ResolveScope(context.Background(), 5, time.Time{}, int64p(2))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestResolveScope_PlatformAssignment(t *testing.T) {
	f := newAccessFixture(t, 0)
	f.assign(t, 7, 1, nil, time.Now()) // SystemAdmin 平台级

	scope, err := f.svc.ResolveScope(context.Background(), 7, time.Time{}, nil)
	require.NoError(t, err)
	assert.True(t, scope.Platform)
	assert.Equal(t, 100, scope.RoleLevel)
	assert.Nil(t, scope.CompanyID)

	// 平台角色可选定任意公司视角
	scope, err = f.svc.ResolveScope(context.Background(), 7, time.Time{}, int64p(2))
	require.NoError(t, err)
	assert.True(t, scope.Platform)
	require.NotNil(t, scope.CompanyID)
	assert.Equal(t, int64(2), *scope.CompanyID)
}

func TestResolveScope_BranchNarrowing(t *testing.T) {
	f := newAccessFixture(t, 0)
	f.assign(t, 5, 4, int64p(1), time.Now())
	f.branches.SeedLink(5, 1, 11)

	scope, err := f.svc.ResolveScope(context.Background(), 5, time.Time{}, nil)
	require.NoError(t, err)
	require.NotNil(t, scope.BranchID)
	assert.Equal(t, int64(11), *scope.BranchID)
}

func TestResolveScope_CacheHitAndInvalidate(t *testing.T) {
	f := newAccessFixture(t, time.Minute)
	ctx := context.Background()
	f.assign(t, 5, 4, int64p(1), time.Now())

	scope, err := f.svc.ResolveScope(ctx, 5, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, scope.RoleLevel)

	// 升级角色：缓存未失效前还看到旧 scope
	f.assign(t, 5, 2, int64p(1), time.Now())
	scope, err = f.svc.ResolveScope(ctx, 5, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, scope.RoleLevel)

	// 显式失效后立即看到新等级
	require.NoError(t, f.svc.InvalidateScope(ctx, 5))
	scope, err = f.svc.ResolveScope(ctx, 5, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 80, scope.RoleLevel)
}

func TestResolveScope_FreshLoginBypassesStaleCache(t *testing.T) {
	f := newAccessFixture(t, time.Minute)
	ctx := context.Background()
	f.assign(t, 5, 4, int64p(1), time.Now())

	firstLogin := time.Unix(1700000000, 0)
	scope, err := f.svc.ResolveScope(ctx, 5, firstLogin, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, scope.RoleLevel)

	// 角色升级后没有任何失效调用，但重新登录（新签发时间）必须看到新 scope
	f.assign(t, 5, 2, int64p(1), time.Now())
	secondLogin := firstLogin.Add(30 * time.Second)
	scope, err = f.svc.ResolveScope(ctx, 5, secondLogin, nil)
	require.NoError(t, err)
	assert.Equal(t, 80, scope.RoleLevel)

	// 旧令牌在 TTL 内仍命中各自的缓存条目
	scope, err = f.svc.ResolveScope(ctx, 5, firstLogin, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, scope.RoleLevel)
}

func seedMenus(f *accessFixture) {
	f.menus.SeedMenu(domain.MenuEntry{MenuID: 1, MenuCode: "core.dashboard", Module: "core", SortOrder: 10, MinLevel: 10})
	f.menus.SeedMenu(domain.MenuEntry{MenuID: 2, MenuCode: "core.users", Module: "core", SortOrder: 20, MinLevel: 60})
	f.menus.SeedMenu(domain.MenuEntry{MenuID: 3, MenuCode: "hrms.employees", Module: "hrms", SortOrder: 30, MinLevel: 40})
	f.menus.SeedMenu(domain.MenuEntry{MenuID: 4, MenuCode: "ems.students", Module: "ems", SortOrder: 40, MinLevel: 40})
	f.menus.SeedMenu(domain.MenuEntry{MenuID: 5, MenuCode: "crm.customers", Module: "crm", SortOrder: 50, MinLevel: 40})
}

func TestComputeMenus_LevelFilterAndOrder(t *testing.T) {
	f := newAccessFixture(t, 0)
	seedMenus(f)

	scope := &domain.TenantScope{UserID: 5, CompanyID: int64p(1), RoleLevel: 40}
	entries, err := f.svc.ComputeMenus(context.Background(), scope)
	require.NoError(t, err)

	codes := menuCodes(entries)
	assert.Equal(t, []string{"core.dashboard", "hrms.employees", "ems.students", "crm.customers"}, codes)
}

func TestComputeMenus_LevelZeroSeesNothingGated(t *testing.T) {
	f := newAccessFixture(t, 0)
	seedMenus(f)

	scope := &domain.TenantScope{UserID: 5, RoleLevel: 0}
	entries, err := f.svc.ComputeMenus(context.Background(), scope)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestComputeMenus_AllowlistIntersection(t *testing.T) {
	f := newAccessFixture(t, 0)
	seedMenus(f)
	// 白名单含一个不存在的 id（999），应被静默忽略
	f.companies.SeedCompany(domain.Company{
		CompanyID:     1,
		CompanyName:   "Acme",
		Status:        "active",
		MenuAllowlist: []int64{1, 3, 999},
	})

	scope := &domain.TenantScope{UserID: 5, CompanyID: int64p(1), RoleLevel: 80}
	entries, err := f.svc.ComputeMenus(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"core.dashboard", "hrms.employees"}, menuCodes(entries))
}

func TestComputeMenus_ModuleFilter(t *testing.T) {
	f := newAccessFixture(t, 0)
	seedMenus(f)
	f.companies.SeedCompany(domain.Company{
		CompanyID:      1,
		CompanyName:    "Acme",
		Status:         "active",
		EnabledModules: []string{"core", "hrms"},
	})

	scope := &domain.TenantScope{UserID: 5, CompanyID: int64p(1), RoleLevel: 80}
	entries, err := f.svc.ComputeMenus(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"core.dashboard", "core.users", "hrms.employees"}, menuCodes(entries))
}

func TestComputeMenus_BranchNarrowsCompany(t *testing.T) {
	f := newAccessFixture(t, 0)
	seedMenus(f)
	f.companies.SeedCompany(domain.Company{
		CompanyID:     1,
		CompanyName:   "Acme",
		Status:        "active",
		MenuAllowlist: []int64{1, 2, 3},
	})
	f.companies.SeedBranch(domain.Branch{
		BranchID:      11,
		CompanyID:     1,
		BranchName:    "East",
		Status:        "active",
		MenuAllowlist: []int64{1, 3},
	})

	scope := &domain.TenantScope{UserID: 5, CompanyID: int64p(1), BranchID: int64p(11), RoleLevel: 80}
	entries, err := f.svc.ComputeMenus(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"core.dashboard", "hrms.employees"}, menuCodes(entries))
}

func TestComputeMenus_PlatformWithoutCompanySeesAll(t *testing.T) {
	f := newAccessFixture(t, 0)
	seedMenus(f)

	scope := &domain.TenantScope{UserID: 7, RoleLevel: 100, Platform: true}
	entries, err := f.svc.ComputeMenus(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestComputeMenus_InactiveEntryHidden(t *testing.T) {
	f := newAccessFixture(t, 0)
	seedMenus(f)
	f.menus.SeedMenu(domain.MenuEntry{
		MenuID: 3, MenuCode: "hrms.employees", Module: "hrms", SortOrder: 30, MinLevel: 40,
		IsActive: sql.NullBool{Bool: false, Valid: true},
	})

	scope := &domain.TenantScope{UserID: 5, CompanyID: int64p(1), RoleLevel: 80}
	entries, err := f.svc.ComputeMenus(context.Background(), scope)
	require.NoError(t, err)
	assert.NotContains(t, menuCodes(entries), "hrms.employees")
}

func menuCodes(entries []domain.MenuEntry) []string {
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.MenuCode)
	}
	return codes
}
