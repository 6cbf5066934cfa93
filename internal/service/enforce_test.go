package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erp-access/internal/domain"
)

func TestRequireLevel(t *testing.T) {
	assert.ErrorIs(t, RequireLevel(nil, LevelEmployee), domain.ErrForbidden)

	scope := &domain.TenantScope{UserID: 5, RoleLevel: 60}
	assert.NoError(t, RequireLevel(scope, LevelCompanyRead))
	assert.ErrorIs(t, RequireLevel(scope, LevelCompanyAdmin), domain.ErrForbidden)

	// 无分配用户 level 0：什么都过不了
	zero := &domain.TenantScope{UserID: 6, RoleLevel: 0}
	assert.ErrorIs(t, RequireLevel(zero, LevelEmployee), domain.ErrForbidden)
}

func TestReadCompanyFilter(t *testing.T) {
	_, err := ReadCompanyFilter(nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// 租户用户：恒注入自身公司
	cid := int64(3)
	filter, err := ReadCompanyFilter(&domain.TenantScope{UserID: 5, CompanyID: &cid, RoleLevel: 60})
	require.NoError(t, err)
	require.NotNil(t, filter)
	assert.Equal(t, int64(3), *filter)

	// 平台用户未选公司：不过滤
	filter, err = ReadCompanyFilter(&domain.TenantScope{UserID: 7, RoleLevel: 100, Platform: true})
	require.NoError(t, err)
	assert.Nil(t, filter)

	// 无分配用户：拒绝
	_, err = ReadCompanyFilter(&domain.TenantScope{UserID: 6, RoleLevel: 0})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestResolveWriteCompany(t *testing.T) {
	cid := int64(3)
	scope := &domain.TenantScope{UserID: 5, CompanyID: &cid, RoleLevel: 80}

	// 未指定：用自身公司
	got, err := ResolveWriteCompany(scope, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	// 指定自身公司：允许
	got, err = ResolveWriteCompany(scope, &cid)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	// 指定其他公司：冲突立即拒绝
	other := int64(4)
	_, err = ResolveWriteCompany(scope, &other)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// 平台用户可指定任意公司，但必须指定
	platform := &domain.TenantScope{UserID: 7, RoleLevel: 100, Platform: true}
	got, err = ResolveWriteCompany(platform, &other)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
	_, err = ResolveWriteCompany(platform, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
