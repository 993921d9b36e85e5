package tenancy

// RequestContext 每个请求只构造一次，供各校验函数使用
type RequestContext struct {
	Host string

	// 由主机名解析出的租户；TenantKey 为空表示控制面请求
	TenantKey    string
	TenantID     *uint
	TenantDBName string

	// 认证用户
	Authenticated bool
	UserID        uint
	Role          string
	UserTenantID  *uint
	UserActive    bool
}

// HasResolvedTenant 主机名是否解析到了租户
func (rc RequestContext) HasResolvedTenant() bool {
	return rc.TenantID != nil
}

// IsSuperAdmin 当前用户是否超级管理员
func (rc RequestContext) IsSuperAdmin() bool {
	return rc.Authenticated && rc.Role == RoleSuperAdmin
}

// RoleSuperAdmin 与 models.RoleSuperAdmin 一致
const RoleSuperAdmin = "super_admin"
