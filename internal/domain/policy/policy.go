// Package policy decides whether a caller may see or act on an expense.
// Every function is pure; callers translate a denial into a rejected request.
package policy

import (
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// Owner describes the owner of an expense for authorization purposes
type Owner struct {
	ID        int64
	ManagerID *int64
}

// OwnerOf extracts the owner attributes from a user
func OwnerOf(u *entity.User) Owner {
	return Owner{ID: u.ID, ManagerID: u.ManagerID}
}

// ManagedBy reports whether managerID is the owner's manager
func (o Owner) ManagedBy(managerID int64) bool {
	return o.ManagerID != nil && *o.ManagerID == managerID
}

// CanView reports whether actor may read an expense owned by owner.
// Employees see their own, managers also see their team, admins see all.
func CanView(actor entity.Actor, owner Owner) bool {
	switch actor.Role {
	case entity.RoleAdmin:
		return true
	case entity.RoleManager:
		return owner.ID == actor.ID || owner.ManagedBy(actor.ID)
	case entity.RoleEmployee:
		return owner.ID == actor.ID
	default:
		return false
	}
}

// CanSubmit reports whether actor may submit an expense owned by ownerID.
// Only the owner may submit, whatever the role.
func CanSubmit(actor entity.Actor, ownerID int64) bool {
	return actor.Role.IsValid() && actor.ID == ownerID
}

// CanDecide reports whether actor may approve or reject an expense owned by owner.
func CanDecide(actor entity.Actor, owner Owner) bool {
	switch actor.Role {
	case entity.RoleAdmin:
		return true
	case entity.RoleManager:
		return owner.ID != actor.ID && owner.ManagedBy(actor.ID)
	default:
		return false
	}
}

// AuthorizeView returns an access error when CanView is false
func AuthorizeView(actor entity.Actor, owner Owner) error {
	if !CanView(actor, owner) {
		return apperr.AccessDenied("user %d may not view expenses of user %d", actor.ID, owner.ID)
	}
	return nil
}

// AuthorizeSubmit returns an access error when CanSubmit is false
func AuthorizeSubmit(actor entity.Actor, ownerID int64) error {
	if !CanSubmit(actor, ownerID) {
		return apperr.AccessDenied("only the owner can submit this expense")
	}
	return nil
}

// AuthorizeDecision returns an access error when CanDecide is false
func AuthorizeDecision(actor entity.Actor, owner Owner) error {
	if !actor.Role.IsReviewer() {
		return apperr.AccessDenied("role %s cannot approve or reject expenses", actor.Role)
	}
	if !CanDecide(actor, owner) {
		return apperr.AccessDenied("user %d is not the manager of user %d", actor.ID, owner.ID)
	}
	return nil
}

// RequireRole returns an access error unless actor has one of roles
func RequireRole(actor entity.Actor, roles ...entity.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return apperr.AccessDenied("role %s is not allowed", actor.Role)
}
