package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"erp-access/internal/service"
)

// AuthHandler 认证 Handler
type AuthHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler 创建认证 Handler
func NewAuthHandler(authService service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login 用户登录
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. 参数解析（支持多种格式）
	// loginApi 会把 company_id 等放在 JSON body（axios beforeRequestHook 会把 params 作为 data）
	var reqBody map[string]any
	_ = readBodyJSON(r, 1<<20, &reqBody)

	// Some clients may wrap params in {params:{...}}
	if p, ok := reqBody["params"].(map[string]any); ok && p != nil {
		for _, k := range []string{"company_id", "accountHash", "passwordHash"} {
			if _, ok2 := reqBody[k]; !ok2 {
				reqBody[k] = p[k]
			}
		}
	}

	// 参数优先级：Body > Query
	var companyID *int64
	if v, ok := reqBody["company_id"].(float64); ok {
		cid := int64(v)
		companyID = &cid
	} else if s, ok := reqBody["company_id"].(string); ok {
		companyID = parseInt64Ptr(s)
	}
	if companyID == nil {
		companyID = parseInt64Ptr(r.URL.Query().Get("company_id"))
	}

	accountHash, _ := reqBody["accountHash"].(string)
	if accountHash == "" {
		accountHash = r.URL.Query().Get("accountHash")
	}
	passwordHash, _ := reqBody["passwordHash"].(string)
	if passwordHash == "" {
		passwordHash = r.URL.Query().Get("passwordHash")
	}

	// 2. 调用 Service
	req := service.LoginRequest{
		CompanyID:    companyID,
		AccountHash:  accountHash,
		PasswordHash: passwordHash,
		IPAddress:    getClientIP(r),
		UserAgent:    r.UserAgent(),
	}

	resp, err := h.authService.Login(ctx, req)
	if err != nil {
		// Service 层已经记录了详细的日志，这里只记录错误
		h.logger.Error("Login failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	// 3. 构建响应
	result := map[string]any{
		"accessToken":  resp.AccessToken,
		"userId":       resp.UserID,
		"user_account": resp.UserAccount,
		"nickName":     resp.NickName,
		"role":         resp.Role,
		"role_level":   resp.RoleLevel,
		"platform":     resp.Platform,
		"homePath":     resp.HomePath,
	}
	if resp.CompanyID != nil {
		result["company_id"] = *resp.CompanyID
		result["company_name"] = resp.CompanyName
		result["domain"] = resp.Domain
	}

	writeJSON(w, http.StatusOK, Ok(result))
}

// SearchCompanies 登录页的公司自动解析
func (h *AuthHandler) SearchCompanies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountHash := strings.TrimSpace(r.URL.Query().Get("accountHash"))
	passwordHash := strings.TrimSpace(r.URL.Query().Get("passwordHash"))

	req := service.SearchCompaniesRequest{
		AccountHash:  accountHash,
		PasswordHash: passwordHash,
	}

	resp, err := h.authService.SearchCompanies(ctx, req)
	if err != nil {
		h.logger.Error("SearchCompanies failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	items := make([]any, 0, len(resp.Companies))
	for _, c := range resp.Companies {
		items = append(items, map[string]any{
			"company_id":  c.CompanyID,
			"accountType": c.AccountType,
		})
	}

	writeJSON(w, http.StatusOK, Ok(items))
}

// getClientIP 取客户端 IP（优先代理头）
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	return r.RemoteAddr
}
