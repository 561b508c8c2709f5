package domain

import (
	"fmt"
	"strings"
)

// Domain identifies one of the independent trust contexts of the storefront.
type Domain string

const (
	DomainCustomer Domain = "CUSTOMER"
	DomainStaff    Domain = "STAFF"
	DomainAdmin    Domain = "ADMIN"
)

// All lists every domain in a stable order.
func All() []Domain {
	return []Domain{DomainCustomer, DomainStaff, DomainAdmin}
}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainCustomer, DomainStaff, DomainAdmin:
		return true
	}
	return false
}

// Slug returns the lower-case path segment used for the domain's surface.
func (d Domain) Slug() string {
	return strings.ToLower(string(d))
}

func (d Domain) String() string {
	return string(d)
}

// Parse accepts either the enumeration value or its slug.
func Parse(raw string) (Domain, error) {
	d := Domain(strings.ToUpper(strings.TrimSpace(raw)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown domain %q", raw)
	}
	return d, nil
}
