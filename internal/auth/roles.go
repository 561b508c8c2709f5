package auth

import (
	"strings"

	"github.com/spec-kit/storefront-session/internal/domain"
)

// Role markers recognized in a normalized scope.
const (
	roleAdmin          = "ADMIN"
	roleSellerStaff    = "SELLER_STAFF"
	roleWarehouseStaff = "WAREHOUSE_STAFF"
)

// HasRole reports whether the normalized scope contains role as a whole word.
func HasRole(claims *domain.ClaimSet, role string) bool {
	role = strings.ToUpper(strings.TrimSpace(role))
	if claims == nil || role == "" {
		return false
	}
	for _, token := range strings.Fields(NormalizeScope(claims)) {
		if token == role {
			return true
		}
	}
	return false
}

// HasCapability evaluates capability against claims. A nil claim set
// satisfies nothing, including CUSTOMER.
func HasCapability(claims *domain.ClaimSet, capability domain.Capability) bool {
	if claims == nil {
		return false
	}
	switch capability {
	case domain.CapabilityAdmin:
		return HasRole(claims, roleAdmin)
	case domain.CapabilitySellerStaff:
		return HasRole(claims, roleSellerStaff)
	case domain.CapabilityWarehouseStaff:
		return HasRole(claims, roleWarehouseStaff)
	case domain.CapabilityAnyStaff:
		return HasRole(claims, roleSellerStaff) || HasRole(claims, roleWarehouseStaff)
	case domain.CapabilityCustomer:
		return !HasCapability(claims, domain.CapabilityAnyStaff) && !HasRole(claims, roleAdmin)
	default:
		return false
	}
}

// CapabilitiesOf lists every capability claims satisfy.
func CapabilitiesOf(claims *domain.ClaimSet) []domain.Capability {
	out := make([]domain.Capability, 0, 2)
	for _, capability := range domain.Capabilities() {
		if HasCapability(claims, capability) {
			out = append(out, capability)
		}
	}
	return out
}

// CapabilityFor returns the capability a token must carry to act in d.
func CapabilityFor(d domain.Domain) domain.Capability {
	switch d {
	case domain.DomainAdmin:
		return domain.CapabilityAdmin
	case domain.DomainStaff:
		return domain.CapabilityAnyStaff
	default:
		return domain.CapabilityCustomer
	}
}

// Allows reports whether claims may act in d.
func Allows(claims *domain.ClaimSet, d domain.Domain) bool {
	return HasCapability(claims, CapabilityFor(d))
}

// HomeDomain returns the domain claims belong to, preferring ADMIN over STAFF
// over CUSTOMER. It returns false for undecodable tokens.
func HomeDomain(claims *domain.ClaimSet) (domain.Domain, bool) {
	for _, d := range []domain.Domain{domain.DomainAdmin, domain.DomainStaff, domain.DomainCustomer} {
		if Allows(claims, d) {
			return d, true
		}
	}
	return "", false
}
