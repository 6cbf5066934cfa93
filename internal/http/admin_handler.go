package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"erp-access/internal/service"
)

// AdminHandler 管理 API Handler
// 路由形态：/admin/api/v1/{users|roles|role-assignments|companies|menu-registry|audit}...
type AdminHandler struct {
	admin  service.AdminService
	logger *zap.Logger
}

// NewAdminHandler 创建管理 Handler
func NewAdminHandler(admin service.AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// UsersHandler /admin/api/v1/users 及子路径分发
func (h *AdminHandler) UsersHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/users")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			h.listUsers(w, r)
		case http.MethodPost:
			h.createUser(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case rest == "export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.exportUsers(w, r)
	case strings.HasSuffix(rest, "/reset-password"):
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.resetPassword(w, r, strings.TrimSuffix(rest, "/reset-password"))
	case strings.HasSuffix(rest, "/status"):
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.setUserStatus(w, r, strings.TrimSuffix(rest, "/status"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	q := r.URL.Query()

	req := service.ListUsersRequest{
		CompanyID: parseInt64Ptr(q.Get("company_id")),
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		Page:      parseInt(q.Get("page"), 1),
		Size:      parseInt(q.Get("size"), 50),
	}

	resp, err := h.admin.ListUsers(r.Context(), scope, req)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	items := make([]any, 0, len(resp.Users))
	for _, u := range resp.Users {
		item := map[string]any{
			"user_id":      u.UserID,
			"user_account": u.UserAccount,
			"nickname":     u.Nickname.String,
			"email":        u.Email.String,
			"status":       u.Status,
		}
		if u.CompanyID.Valid {
			item["company_id"] = u.CompanyID.Int64
		}
		if u.LastLoginAt.Valid {
			item["last_login_at"] = u.LastLoginAt.Time.Format(time.RFC3339)
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": resp.Total,
	}))
}

func (h *AdminHandler) createUser(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())

	var body struct {
		CompanyID    *int64 `json:"company_id"`
		UserAccount  string `json:"user_account"`
		AccountHash  string `json:"accountHash"`
		PasswordHash string `json:"passwordHash"`
		Nickname     string `json:"nickname"`
		Email        string `json:"email"`
		EmailHash    string `json:"emailHash"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	req := service.CreateUserRequest{
		CompanyID:   body.CompanyID,
		UserAccount: body.UserAccount,
		Nickname:    body.Nickname,
		Email:       body.Email,
	}
	var err error
	if req.AccountHash, err = hex.DecodeString(body.AccountHash); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid account hash"))
		return
	}
	if body.PasswordHash != "" {
		if req.PasswordHash, err = hex.DecodeString(body.PasswordHash); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid password hash"))
			return
		}
	}
	if body.EmailHash != "" {
		if req.EmailHash, err = hex.DecodeString(body.EmailHash); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid email hash"))
			return
		}
	}

	userID, err := h.admin.CreateUser(r.Context(), scope, req)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"user_id": userID}))
}

func (h *AdminHandler) resetPassword(w http.ResponseWriter, r *http.Request, idPart string) {
	scope := ScopeFromContext(r.Context())

	userID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid user id"))
		return
	}

	var body struct {
		PasswordHash string `json:"passwordHash"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	passwordHash, err := hex.DecodeString(body.PasswordHash)
	if err != nil || len(passwordHash) != sha256.Size {
		writeJSON(w, http.StatusBadRequest, Fail("invalid password hash"))
		return
	}

	if err := h.admin.ResetPassword(r.Context(), scope, service.ResetPasswordRequest{
		UserID:       userID,
		PasswordHash: passwordHash,
	}); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"user_id": userID}))
}

func (h *AdminHandler) setUserStatus(w http.ResponseWriter, r *http.Request, idPart string) {
	scope := ScopeFromContext(r.Context())

	userID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid user id"))
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if err := h.admin.SetUserStatus(r.Context(), scope, service.SetUserStatusRequest{
		UserID: userID,
		Status: body.Status,
	}); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"user_id": userID}))
}

func (h *AdminHandler) exportUsers(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	q := r.URL.Query()

	// 导出不分页：size 取大值，一次拉全量
	resp, err := h.admin.ExportUsers(r.Context(), scope, service.ListUsersRequest{
		CompanyID: parseInt64Ptr(q.Get("company_id")),
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		Page:      1,
		Size:      100000,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	data, err := GenerateUsersExport(resp.Users)
	if err != nil {
		h.logger.Error("Failed to generate users export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("export failed"))
		return
	}

	filename := fmt.Sprintf("users-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = w.Write(data)
}

// RolesHandler /admin/api/v1/roles
func (h *AdminHandler) RolesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope := ScopeFromContext(r.Context())

	roles, err := h.admin.ListRoles(r.Context(), scope)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	items := make([]any, 0, len(roles))
	for _, role := range roles {
		items = append(items, map[string]any{
			"role_id":     role.RoleID,
			"role_name":   role.RoleName,
			"level":       role.Level,
			"description": role.Description,
		})
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// AssignmentsHandler /admin/api/v1/role-assignments 及 /{id}
func (h *AdminHandler) AssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/role-assignments")
	rest = strings.Trim(rest, "/")
	scope := ScopeFromContext(r.Context())

	switch {
	case rest == "" && r.Method == http.MethodGet:
		userID := parseInt64Ptr(r.URL.Query().Get("user_id"))
		if userID == nil {
			writeJSON(w, http.StatusBadRequest, Fail("user_id is required"))
			return
		}
		assignments, err := h.admin.ListRoleAssignments(r.Context(), scope, *userID)
		if err != nil {
			writeDomainError(w, h.logger, r, err)
			return
		}
		items := make([]any, 0, len(assignments))
		for _, a := range assignments {
			item := map[string]any{
				"assignment_id": a.AssignmentID,
				"user_id":       a.UserID,
				"role_id":       a.RoleID,
				"role_name":     a.RoleName,
				"level":         a.RoleLevel,
				"created_at":    a.CreatedAt.Format(time.RFC3339),
			}
			if a.CompanyID.Valid {
				item["company_id"] = a.CompanyID.Int64
			}
			items = append(items, item)
		}
		writeJSON(w, http.StatusOK, Ok(items))

	case rest == "" && r.Method == http.MethodPost:
		var body struct {
			UserID    int64  `json:"user_id"`
			RoleID    int64  `json:"role_id"`
			CompanyID *int64 `json:"company_id"`
		}
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		assignmentID, err := h.admin.CreateRoleAssignment(r.Context(), scope, service.CreateAssignmentRequest{
			UserID:    body.UserID,
			RoleID:    body.RoleID,
			CompanyID: body.CompanyID,
		})
		if err != nil {
			writeDomainError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"assignment_id": assignmentID}))

	case rest != "" && r.Method == http.MethodDelete:
		assignmentID, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid assignment id"))
			return
		}
		if err := h.admin.DeleteRoleAssignment(r.Context(), scope, assignmentID); err != nil {
			writeDomainError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"assignment_id": assignmentID}))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// CompaniesHandler /admin/api/v1/companies 及 /{id}/menu-allowlist
func (h *AdminHandler) CompaniesHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/companies")
	rest = strings.Trim(rest, "/")
	scope := ScopeFromContext(r.Context())

	switch {
	case rest == "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		companies, total, err := h.admin.ListCompanies(r.Context(), scope, q.Get("status"), parseInt(q.Get("page"), 1), parseInt(q.Get("size"), 50))
		if err != nil {
			writeDomainError(w, h.logger, r, err)
			return
		}
		items := make([]any, 0, len(companies))
		for _, c := range companies {
			items = append(items, map[string]any{
				"company_id":      c.CompanyID,
				"company_name":    c.CompanyName,
				"domain":          c.Domain,
				"status":          c.Status,
				"menu_allowlist":  []int64(c.MenuAllowlist),
				"enabled_modules": []string(c.EnabledModules),
			})
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": total}))

	case strings.HasSuffix(rest, "/menu-allowlist"):
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		companyID, err := strconv.ParseInt(strings.TrimSuffix(rest, "/menu-allowlist"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid company id"))
			return
		}
		var body struct {
			MenuIDs []int64 `json:"menu_ids"`
		}
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if err := h.admin.UpdateMenuAllowlist(r.Context(), scope, service.UpdateAllowlistRequest{
			CompanyID: companyID,
			MenuIDs:   body.MenuIDs,
		}); err != nil {
			writeDomainError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"company_id": companyID}))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// MenuRegistryHandler /admin/api/v1/menu-registry（只读）
func (h *AdminHandler) MenuRegistryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope := ScopeFromContext(r.Context())

	entries, err := h.admin.ListMenuRegistry(r.Context(), scope)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	items := make([]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]any{
			"menu_id":    e.MenuID,
			"menu_code":  e.MenuCode,
			"module":     e.Module,
			"sort_order": e.SortOrder,
			"min_level":  e.MinLevel,
			"is_active":  !e.IsActive.Valid || e.IsActive.Bool,
		})
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// AuditHandler /admin/api/v1/audit
func (h *AdminHandler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope := ScopeFromContext(r.Context())
	q := r.URL.Query()

	records, total, err := h.admin.ListAudit(r.Context(), scope, parseInt(q.Get("page"), 1), parseInt(q.Get("size"), 50))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	items := make([]any, 0, len(records))
	for _, rec := range records {
		item := map[string]any{
			"audit_id":      rec.AuditID,
			"actor_user_id": rec.ActorUserID,
			"action":        rec.Action,
			"target_kind":   rec.TargetKind,
			"target_id":     rec.TargetID,
			"created_at":    rec.CreatedAt.Format(time.RFC3339),
		}
		if rec.CompanyID.Valid {
			item["company_id"] = rec.CompanyID.Int64
		}
		if len(rec.Detail) > 0 {
			item["detail"] = rec.Detail
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": total}))
}
