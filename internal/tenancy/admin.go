package tenancy

import (
	"strings"

	"gmdl/pkg/config"
)

// AdminPolicy 控制面（管理域名）判定规则
type AdminPolicy struct {
	Domain            string
	AllowedHosts      []string
	AllowDevSubdomain bool
	Production        bool
}

// AdminPolicyFromConfig 从配置构造
func AdminPolicyFromConfig(cfg *config.Config) AdminPolicy {
	return AdminPolicy{
		Domain:            cfg.Admin.Domain,
		AllowedHosts:      cfg.Admin.AllowedHosts,
		AllowDevSubdomain: cfg.Admin.AllowDevAdminSubdomain,
		Production:        cfg.App.IsProduction(),
	}
}

// IsAdminHost 依次检查：显式白名单、管理域名、非生产环境下的 admin.* 子域名
func (p AdminPolicy) IsAdminHost(host string) bool {
	host = NormalizeHost(host)
	if host == "" {
		return false
	}

	for _, allowed := range p.AllowedHosts {
		if strings.ToLower(strings.TrimSpace(allowed)) == host {
			return true
		}
	}

	if domain := strings.ToLower(p.Domain); domain != "" && host == domain {
		return true
	}

	if p.AllowDevSubdomain && !p.Production && strings.HasPrefix(host, "admin.") {
		return true
	}
	return false
}
