package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 pprof 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAuthRoutes 注册登录相关路由（无需认证）
func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.Handle("/auth/api/v1/login", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Login(w, req)
	})

	r.Handle("/auth/api/v1/companies/search", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.SearchCompanies(w, req)
	})
}

// RegisterAccessRoutes 注册菜单 / scope 查询路由（需认证）
func (r *Router) RegisterAccessRoutes(mw *AuthMiddleware, h *MenuHandler) {
	r.Handle("/access/api/v1/menus", mw.Wrap(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetMenus(w, req)
	}))

	r.Handle("/access/api/v1/scope", mw.Wrap(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetScope(w, req)
	}))
}

// RegisterAdminRoutes 注册管理路由（需认证；等级门禁在 Service 层，fail-closed）
func (r *Router) RegisterAdminRoutes(mw *AuthMiddleware, h *AdminHandler) {
	r.Handle("/admin/api/v1/users", mw.Wrap(h.UsersHandler))
	r.Handle("/admin/api/v1/users/", mw.Wrap(h.UsersHandler))

	r.Handle("/admin/api/v1/roles", mw.Wrap(h.RolesHandler))

	r.Handle("/admin/api/v1/role-assignments", mw.Wrap(h.AssignmentsHandler))
	r.Handle("/admin/api/v1/role-assignments/", mw.Wrap(h.AssignmentsHandler))

	r.Handle("/admin/api/v1/companies", mw.Wrap(h.CompaniesHandler))
	r.Handle("/admin/api/v1/companies/", mw.Wrap(h.CompaniesHandler))

	r.Handle("/admin/api/v1/menu-registry", mw.Wrap(h.MenuRegistryHandler))

	r.Handle("/admin/api/v1/audit", mw.Wrap(h.AuditHandler))
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
