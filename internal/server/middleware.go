package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

const tenantContextKey = "parlo.tenant"

// TenantResolver resolves the tenant from the request host's subdomain,
// falling back to the X-Subdomain header (used by frontends served from a
// shared origin). Resolution failure is not an error here; handlers that
// need a tenant reject the request themselves.
func TenantResolver(st store.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			subdomain := extractSubdomain(c.Request().Host)
			if subdomain == "" {
				subdomain = strings.TrimSpace(c.Request().Header.Get("X-Subdomain"))
			}
			if subdomain != "" {
				tenant, err := st.GetTenantBySubdomain(c.Request().Context(), subdomain)
				if err == nil {
					c.Set(tenantContextKey, tenant)
				} else if schema.CodeOf(err) != schema.ErrCodeNotFound {
					return err
				}
			}
			return next(c)
		}
	}
}

// currentTenant returns the resolved tenant, or nil.
func currentTenant(c echo.Context) *store.Tenant {
	tenant, _ := c.Get(tenantContextKey).(*store.Tenant)
	return tenant
}

// extractSubdomain handles hosts like:
//
//	acme.parlo.app       -> acme
//	acme.localhost:8080  -> acme
//	localhost:8080       -> ""
func extractSubdomain(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	if strings.Contains(host, "localhost") {
		if host == "localhost" {
			return ""
		}
		parts := strings.Split(host, ".")
		if len(parts) < 2 || parts[len(parts)-1] != "localhost" {
			return ""
		}
		return parts[0]
	}

	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}
