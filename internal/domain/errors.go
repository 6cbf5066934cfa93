package domain

import "errors"

// 核心错误类型
// 权限相关的歧义（缺少 scope、缺少角色分配、缓存过期）一律收敛到最严格的结果，
// 绝不隐式放行。
var (
	ErrUnauthorized = errors.New("unauthorized") // 无身份或身份无效（token 缺失/过期/签名错误）
	ErrForbidden    = errors.New("forbidden")    // 身份有效但权限不足或租户不匹配
	ErrNotFound     = errors.New("not found")    // 引用的实体不存在（公司、菜单条目等）
	ErrFetch        = errors.New("fetch error")  // 底层数据服务调用失败（不在本层重试）
)
