package services

import "github.com/hearthbakery/bakery-orders-api/models"

// Actor is the user a mutating call is performed on behalf of.
// A nil *Actor means the system itself (webhooks, migrations).
type Actor struct {
	UserID uint
	Role   string
}

// StaffActor builds an actor for a bakery staff member.
func StaffActor(userID uint) *Actor {
	return &Actor{UserID: userID, Role: models.RoleStaff}
}

// CustomerActor builds an actor for a customer.
func CustomerActor(userID uint) *Actor {
	return &Actor{UserID: userID, Role: models.RoleCustomer}
}

// IsStaff reports whether the actor is a staff member.
func (a *Actor) IsStaff() bool {
	return a != nil && a.Role == models.RoleStaff
}

// ID returns the actor's user id, or nil for the system.
func (a *Actor) ID() *uint {
	if a == nil {
		return nil
	}
	id := a.UserID
	return &id
}
