package tenancy

import apperrors "gmdl/pkg/errors"

// CheckAuthenticated 未登录时返回 UNAUTHENTICATED
func CheckAuthenticated(rc RequestContext) error {
	if !rc.Authenticated {
		return apperrors.Unauthenticated("Unauthenticated.")
	}
	return nil
}

// CheckDomainScope 超级管理员只能在管理域名操作；租户用户只能在自己租户的域名操作
func CheckDomainScope(rc RequestContext, policy AdminPolicy) error {
	if err := CheckAuthenticated(rc); err != nil {
		return err
	}

	if rc.IsSuperAdmin() {
		if !policy.IsAdminHost(rc.Host) {
			return apperrors.Forbidden(apperrors.CodeAdminDomainOnly, "Super admin can operate only from the admin domain.").
				With("host", NormalizeHost(rc.Host))
		}
		return nil
	}

	if !rc.HasResolvedTenant() {
		return apperrors.Forbidden(apperrors.CodeTenantDomainRequired, "Tenant users can operate only from a tenant domain.").
			With("host", NormalizeHost(rc.Host))
	}
	if rc.UserTenantID == nil {
		return apperrors.Forbidden(apperrors.CodeUserTenantRequired, "User is not linked to a tenant.")
	}
	if *rc.UserTenantID != *rc.TenantID {
		return apperrors.Forbidden(apperrors.CodeTenantMismatch, "Tenant mismatch for current domain.").
			With("host", NormalizeHost(rc.Host)).
			With("resolved_tenant_id", *rc.TenantID).
			With("user_tenant_id", *rc.UserTenantID)
	}
	return nil
}

// CheckAdminDomainOnly 控制面路由：不能在租户域名上访问，且必须是管理域名
func CheckAdminDomainOnly(rc RequestContext, policy AdminPolicy) error {
	host := NormalizeHost(rc.Host)
	if rc.TenantKey != "" {
		return apperrors.Forbidden(apperrors.CodeAdminAccessDenied, "Control plane is not accessible from tenant domains.").
			With("host", host)
	}
	if !policy.IsAdminHost(host) {
		return apperrors.Forbidden(apperrors.CodeAdminAccessDenied, "Control plane is accessible only from the admin domain.").
			With("host", host)
	}
	return nil
}

// CheckTenantDomainOnly 路由只能在租户域名上访问
func CheckTenantDomainOnly(rc RequestContext) error {
	if !rc.HasResolvedTenant() {
		return apperrors.Forbidden(apperrors.CodeTenantDomainRequired, "This endpoint is available only on a tenant domain.").
			With("host", NormalizeHost(rc.Host))
	}
	return nil
}

// CheckRole 用户角色必须在给定集合内
func CheckRole(rc RequestContext, roles ...string) error {
	if err := CheckAuthenticated(rc); err != nil {
		return err
	}
	for _, role := range roles {
		if rc.Role == role {
			return nil
		}
	}
	return apperrors.Forbidden(apperrors.CodeForbidden, "Insufficient role.").
		With("required", roles).
		With("role", rc.Role)
}

// CheckSuperAdmin 仅超级管理员
func CheckSuperAdmin(rc RequestContext) error {
	if err := CheckAuthenticated(rc); err != nil {
		return err
	}
	if !rc.IsSuperAdmin() {
		return apperrors.Forbidden(apperrors.CodeForbidden, "Super admin only.").With("role", rc.Role)
	}
	return nil
}

// CheckUserActive 已禁用的用户不能继续访问
func CheckUserActive(rc RequestContext) error {
	if err := CheckAuthenticated(rc); err != nil {
		return err
	}
	if !rc.UserActive {
		return apperrors.Forbidden(apperrors.CodeUserDisabled, "User is disabled.")
	}
	return nil
}
