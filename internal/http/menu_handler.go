package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"erp-access/internal/service"
)

// MenuHandler 菜单和 scope 查询 Handler
type MenuHandler struct {
	access service.AccessService
	logger *zap.Logger
}

// NewMenuHandler 创建菜单 Handler
func NewMenuHandler(access service.AccessService, logger *zap.Logger) *MenuHandler {
	return &MenuHandler{access: access, logger: logger}
}

// GetMenus 返回调用者可见的菜单集合（已按 sort_order 排序）
func (h *MenuHandler) GetMenus(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())

	entries, err := h.access.ComputeMenus(r.Context(), scope)
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
		})
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// GetScope 返回调用者当前解析出的租户 scope（前端据此渲染公司切换器等）
func (h *MenuHandler) GetScope(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	writeJSON(w, http.StatusOK, Ok(scope))
}
