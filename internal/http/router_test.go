package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"erp-access/internal/domain"
	"erp-access/internal/repository"
	"erp-access/internal/service"
	"erp-access/internal/store"
	"erp-access/internal/token"
)

type apiFixture struct {
	router  *Router
	tokens  *token.Manager
	expired *token.Manager // 同一密钥对、负 TTL，用于签过期令牌
	users   *repository.MemoryUsersRepo
	roles   *repository.MemoryRolesRepo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()

	companies := repository.NewMemoryCompaniesRepo()
	companies.SeedCompany(domain.Company{CompanyID: 1, CompanyName: "Acme", Status: "active"})
	companies.SeedCompany(domain.Company{CompanyID: 2, CompanyName: "Globex", Status: "active"})

	roles := repository.NewMemoryRolesRepo()
	roles.SeedRole(domain.Role{RoleID: 1, RoleName: "SystemAdmin", Level: 100})
	roles.SeedRole(domain.Role{RoleID: 2, RoleName: "CompanyAdmin", Level: 80})
	roles.SeedRole(domain.Role{RoleID: 4, RoleName: "Employee", Level: 10})

	menus := repository.NewMemoryMenusRepo()
	menus.SeedMenu(domain.MenuEntry{MenuID: 1, MenuCode: "core.dashboard", Module: "core", SortOrder: 10, MinLevel: 10})
	menus.SeedMenu(domain.MenuEntry{MenuID: 2, MenuCode: "core.users", Module: "core", SortOrder: 20, MinLevel: 60})

	users := repository.NewMemoryUsersRepo(companies)
	audit := repository.NewMemoryAuditRepo()

	priv, pub, err := token.GenerateKeyPair()
	require.NoError(t, err)
	tokens, err := token.NewManager(priv, pub, 15*time.Minute, "erp-access-test")
	require.NoError(t, err)
	expired, err := token.NewManager(priv, pub, -time.Minute, "erp-access-test")
	require.NoError(t, err)

	access := service.NewAccessService(roles, companies, menus, repository.NewMemoryBranchResolver(), store.NewMemoryKV(), 0, logger)
	auth := service.NewAuthService(users, access, tokens, logger)
	admin := service.NewAdminService(users, roles, companies, menus, audit, access, logger)

	router := NewRouter(logger)
	mw := NewAuthMiddleware(tokens, access, logger)
	router.RegisterAuthRoutes(NewAuthHandler(auth, logger))
	router.RegisterAccessRoutes(mw, NewMenuHandler(access, logger))
	router.RegisterAdminRoutes(mw, NewAdminHandler(admin, logger))
	router.RegisterHealthRoutes()

	return &apiFixture{router: router, tokens: tokens, expired: expired, users: users, roles: roles}
}

// seedAdmin 建一个公司管理员并返回其令牌
func (f *apiFixture) seedAdmin(t *testing.T, companyID int64) string {
	t.Helper()
	account := fmt.Sprintf("admin%d", companyID)
	userID, err := f.users.CreateUser(context.Background(), &domain.User{
		CompanyID:       sql.NullInt64{Int64: companyID, Valid: true},
		UserAccount:     account,
		UserAccountHash: service.HashAccount(account),
		PasswordHash:    service.HashPassword("secret"),
		Status:          "active",
	})
	require.NoError(t, err)
	_, err = f.roles.CreateAssignment(context.Background(), &domain.RoleAssignment{
		UserID: userID, RoleID: 2, CompanyID: sql.NullInt64{Int64: companyID, Valid: true}, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	signed, _, err := f.tokens.Issue(userID)
	require.NoError(t, err)
	return signed
}

func (f *apiFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reqBody)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result[json.RawMessage] {
	t.Helper()
	var res Result[json.RawMessage]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMenus_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/access/api/v1/menus", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMenus_ExpiredTokenCode(t *testing.T) {
	f := newAPIFixture(t)
	signed, _, err := f.expired.Issue(42)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/access/api/v1/menus", signed, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	res := decodeResult(t, rec)
	assert.Equal(t, ResultTokenExpired, res.Code)
}

func TestLoginAndMenusFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.seedAdmin(t, 1)

	loginBody := map[string]any{
		"accountHash":  hex.EncodeToString(service.HashAccount("admin1")),
		"passwordHash": hex.EncodeToString(service.HashPassword("secret")),
	}
	rec := f.do(t, http.MethodPost, "/auth/api/v1/login", "", loginBody)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, res.Code)

	var login struct {
		AccessToken string `json:"accessToken"`
		RoleLevel   int    `json:"role_level"`
	}
	require.NoError(t, json.Unmarshal(res.Result, &login))
	require.NotEmpty(t, login.AccessToken)
	assert.Equal(t, 80, login.RoleLevel)

	rec = f.do(t, http.MethodGet, "/access/api/v1/menus", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeResult(t, rec)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(res.Result, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "core.dashboard", items[0]["menu_code"])
	assert.Equal(t, "core.users", items[1]["menu_code"])
}

func TestAdminCreateUser_CrossTenantForbidden(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedAdmin(t, 1)

	body := map[string]any{
		"company_id":   2,
		"user_account": "eve",
		"accountHash":  hex.EncodeToString(service.HashAccount("eve")),
	}
	rec := f.do(t, http.MethodPost, "/admin/api/v1/users", bearer, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCreateUser_OwnCompany(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedAdmin(t, 1)

	body := map[string]any{
		"user_account": "eve",
		"accountHash":  hex.EncodeToString(service.HashAccount("eve")),
		"passwordHash": hex.EncodeToString(service.HashPassword("pw")),
	}
	rec := f.do(t, http.MethodPost, "/admin/api/v1/users", bearer, body)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
}

func TestAdminListUsers_InsufficientLevel(t *testing.T) {
	f := newAPIFixture(t)

	// Employee（level 10）访问用户列表
	userID, err := f.users.CreateUser(context.Background(), &domain.User{
		CompanyID:       sql.NullInt64{Int64: 1, Valid: true},
		UserAccount:     "worker",
		UserAccountHash: service.HashAccount("worker"),
		Status:          "active",
	})
	require.NoError(t, err)
	_, err = f.roles.CreateAssignment(context.Background(), &domain.RoleAssignment{
		UserID: userID, RoleID: 4, CompanyID: sql.NullInt64{Int64: 1, Valid: true}, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	bearer, _, err := f.tokens.Issue(userID)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/admin/api/v1/users", bearer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCompanies_PlatformOnly(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedAdmin(t, 1)

	rec := f.do(t, http.MethodGet, "/admin/api/v1/companies", bearer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminUsersExport(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedAdmin(t, 1)

	rec := f.do(t, http.MethodGet, "/admin/api/v1/users/export", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestAdminUsersExport_ReadOnlyLevelForbidden(t *testing.T) {
	f := newAPIFixture(t)
	f.roles.SeedRole(domain.Role{RoleID: 5, RoleName: "CompanyViewer", Level: 60})

	userID, err := f.users.CreateUser(context.Background(), &domain.User{
		CompanyID:       sql.NullInt64{Int64: 1, Valid: true},
		UserAccount:     "viewer",
		UserAccountHash: service.HashAccount("viewer"),
		Status:          "active",
	})
	require.NoError(t, err)
	_, err = f.roles.CreateAssignment(context.Background(), &domain.RoleAssignment{
		UserID: userID, RoleID: 5, CompanyID: sql.NullInt64{Int64: 1, Valid: true}, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	bearer, _, err := f.tokens.Issue(userID)
	require.NoError(t, err)

	// 60 级能看列表，但导出要求 >=80
	rec := f.do(t, http.MethodGet, "/admin/api/v1/users", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/api/v1/users/export", bearer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminMenuRegistry(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedAdmin(t, 1)

	rec := f.do(t, http.MethodGet, "/admin/api/v1/menu-registry", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(res.Result, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "core.dashboard", items[0]["menu_code"])
	assert.Equal(t, float64(60), items[1]["min_level"])
}

func TestAdminResetPassword(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedAdmin(t, 1)

	userID, err := f.users.CreateUser(context.Background(), &domain.User{
		CompanyID:       sql.NullInt64{Int64: 1, Valid: true},
		UserAccount:     "bob",
		UserAccountHash: service.HashAccount("bob"),
		PasswordHash:    service.HashPassword("old"),
		Status:          "active",
	})
	require.NoError(t, err)

	body := map[string]any{
		"passwordHash": hex.EncodeToString(service.HashPassword("new")),
	}
	rec := f.do(t, http.MethodPost, fmt.Sprintf("/admin/api/v1/users/%d/reset-password", userID), bearer, body)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
}

func TestScopeEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedAdmin(t, 1)

	rec := f.do(t, http.MethodGet, "/access/api/v1/scope", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)

	var scope domain.TenantScope
	require.NoError(t, json.Unmarshal(res.Result, &scope))
	assert.Equal(t, 80, scope.RoleLevel)
	require.NotNil(t, scope.CompanyID)
	assert.Equal(t, int64(1), *scope.CompanyID)
}
