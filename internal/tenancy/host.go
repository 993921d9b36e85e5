// Package tenancy 包含与框架无关的租户判定逻辑：主机名解析、管理域名策略、
// 请求上下文以及域名/角色/订阅校验。所有函数都是纯函数，便于单测。
package tenancy

import (
	"net"
	"regexp"
	"strings"
)

var (
	ipv4Pattern      = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
	tenantKeyPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	safeDBName       = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// ReservedSubdomains 不作为租户 key 的子域名
var ReservedSubdomains = map[string]struct{}{
	"api": {},
	"app": {},
	"www": {},
}

// NormalizeHost 小写并去掉端口（含 IPv6 方括号）
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

// ExtractTenantKey 从主机名取租户 key，返回空串表示控制面请求
func ExtractTenantKey(host string) string {
	host = NormalizeHost(host)
	if host == "localhost" || ipv4Pattern.MatchString(host) {
		return ""
	}

	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}

	candidate := parts[0]
	if _, reserved := ReservedSubdomains[candidate]; reserved {
		return ""
	}
	if !tenantKeyPattern.MatchString(candidate) {
		return ""
	}
	return candidate
}

// IsSafeDBName 库名只允许字母、数字、下划线
func IsSafeDBName(name string) bool {
	return safeDBName.MatchString(name)
}
