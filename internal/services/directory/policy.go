package directory

import (
	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/models"
)

// Action is an operation one user performs on another user's account.
type Action int

const (
	ActionDelete Action = iota
	ActionAssignAdmin
	ActionRevokeAdmin
)

func (a Action) String() string {
	switch a {
	case ActionDelete:
		return "delete"
	case ActionAssignAdmin:
		return "assign_admin"
	case ActionRevokeAdmin:
		return "revoke_admin"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a policy check. Err is ErrUnauthorized or
// ErrForbidden when Allowed is false.
type Decision struct {
	Allowed bool
	Err     error
}

func allow() Decision         { return Decision{Allowed: true} }
func deny(err error) Decision { return Decision{Err: err} }

// CanActOn decides whether actor may perform action on target.
// Admins may do everything; an owner may only delete their own account.
func CanActOn(actor *common.Session, target *models.User, action Action) Decision {
	if !actor.Authenticated() {
		return deny(models.ErrUnauthorized)
	}
	if actor.IsAdmin() {
		return allow()
	}
	if action == ActionDelete && ActedOnSelf(actor, target) {
		return allow()
	}
	return deny(models.ErrForbidden)
}

// ActedOnSelf reports whether target is the actor's own account, in which
// case the caller's session must end after a delete or admin revoke.
func ActedOnSelf(actor *common.Session, target *models.User) bool {
	return actor.Authenticated() && target != nil && actor.UserID == target.ID
}
