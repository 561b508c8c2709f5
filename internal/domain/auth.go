package domain

import "time"

// CredentialPair is the token pair held for a single domain.
type CredentialPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Empty reports whether the pair carries no access token.
func (p CredentialPair) Empty() bool {
	return p.AccessToken == ""
}

// Credentials are the username/password submitted at a login surface.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ClaimSet is the decoded, unverified payload of an access token.
type ClaimSet struct {
	Subject   string
	Scope     []string
	ExpiresAt *time.Time
	IssuedAt  *time.Time
	Extra     map[string]any
}

// Capability is a coarse role flag derived from a claim set.
type Capability string

const (
	CapabilityAdmin          Capability = "ADMIN"
	CapabilitySellerStaff    Capability = "SELLER_STAFF"
	CapabilityWarehouseStaff Capability = "WAREHOUSE_STAFF"
	CapabilityAnyStaff       Capability = "ANY_STAFF"
	CapabilityCustomer       Capability = "CUSTOMER"
)

// Capabilities lists every capability in evaluation order.
func Capabilities() []Capability {
	return []Capability{
		CapabilityAdmin,
		CapabilitySellerStaff,
		CapabilityWarehouseStaff,
		CapabilityAnyStaff,
		CapabilityCustomer,
	}
}

// Session describes an established domain session.
type Session struct {
	Domain       Domain
	Subject      string
	ExpiresAt    *time.Time
	Expired      bool
	Capabilities []Capability
}
