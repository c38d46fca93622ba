// Package permission holds one predicate per protected operation.
// Handlers call the predicate for their own operation; nothing dispatches on
// an action name.
package permission

import "github.com/sahilchouksey/course-platform-api/model"

// Ownable is implemented by resources that may have an owning user
type Ownable interface {
	OwnerUserID() (uint, bool)
}

// IsAuthenticated reports whether a user is present and active
func IsAuthenticated(u *model.User) bool {
	return u != nil && u.ID != 0 && u.IsActive
}

// IsModerator reports membership of the moderators group
func IsModerator(u *model.User) bool {
	return IsAuthenticated(u) && u.IsModerator()
}

// IsOwner reports whether u owns resource
func IsOwner(u *model.User, resource Ownable) bool {
	if !IsAuthenticated(u) || resource == nil {
		return false
	}
	ownerID, ok := resource.OwnerUserID()
	return ok && ownerID == u.ID
}

// Course and lesson operations.

func CanCreateContent(u *model.User) bool {
	return IsAuthenticated(u) && !u.IsModerator()
}

func CanListContent(u *model.User) bool {
	return IsAuthenticated(u)
}

func CanRetrieveContent(u *model.User, _ Ownable) bool {
	return IsAuthenticated(u)
}

func CanUpdateContent(u *model.User, resource Ownable) bool {
	return IsModerator(u) || IsOwner(u, resource)
}

func CanDeleteContent(u *model.User, resource Ownable) bool {
	return IsOwner(u, resource)
}

// Payment operations.

func CanCreatePayment(u *model.User) bool {
	return IsAuthenticated(u)
}

func CanListPayments(u *model.User) bool {
	return IsModerator(u)
}

func CanRetrievePayment(u *model.User, p *model.Payment) bool {
	return IsModerator(u) || IsOwner(u, p)
}

// User profile operations.

type userResource struct{ id uint }

func (r userResource) OwnerUserID() (uint, bool) { return r.id, true }

func CanUpdateUser(u *model.User, targetID uint) bool {
	return IsModerator(u) || IsOwner(u, userResource{targetID})
}

func CanDeleteUser(u *model.User, targetID uint) bool {
	return IsOwner(u, userResource{targetID})
}
