// Package policy holds the request principal and the authorization rules
// applied before any lifecycle transition.
package policy

import (
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
)

// Capability is a set of roles. Client and freelancer are independent bits.
type Capability uint8

const (
	CapClient Capability = 1 << iota
	CapFreelancer
	CapSuperuser
	// CapEscrowAuthority is held by the gateway callback so it can fund
	// escrow on behalf of a client.
	CapEscrowAuthority
)

// Principal is the resolved actor of a request. The zero value is anonymous.
type Principal struct {
	UserID uuid.UUID
	Caps   Capability
}

func Anonymous() Principal { return Principal{} }

// System is the principal used by trusted callbacks from the payment gateway.
func System() Principal { return Principal{Caps: CapEscrowAuthority} }

func FromUser(u *models.User) Principal {
	p := Principal{UserID: u.ID}
	if u.IsClient {
		p.Caps |= CapClient
	}
	if u.IsFreelancer {
		p.Caps |= CapFreelancer
	}
	if u.IsSuperuser {
		p.Caps |= CapSuperuser
	}
	return p
}

func (p Principal) Authenticated() bool { return p.UserID != uuid.Nil }

func (p Principal) Has(c Capability) bool { return p.Caps&c == c }

func (p Principal) IsClient() bool     { return p.Authenticated() && p.Has(CapClient) }
func (p Principal) IsFreelancer() bool { return p.Authenticated() && p.Has(CapFreelancer) }
func (p Principal) IsSuperuser() bool  { return p.Authenticated() && p.Has(CapSuperuser) }
func (p Principal) IsSystem() bool     { return p.Has(CapEscrowAuthority) }

// Owns reports whether p may mutate a resource owned by owner.
func (p Principal) Owns(owner uuid.UUID) bool {
	if !p.Authenticated() {
		return false
	}
	return p.UserID == owner || p.Has(CapSuperuser)
}
