package services

import "proptools/internal/models"

// Access is the permission level an operation requires.
type Access int

const (
	Public Access = iota
	Authenticated
	OwnerOrAdmin
	AdminOnly
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case OwnerOrAdmin:
		return "owner_or_admin"
	case AdminOnly:
		return "admin_only"
	}
	return "unknown"
}

// Authorize 在任何写操作之前调用。nil actor 一律视为匿名。
// ownerID 只在 OwnerOrAdmin 时使用。
func Authorize(actor *models.Actor, level Access, ownerID uint) error {
	if level == Public {
		return nil
	}
	if actor == nil {
		return ErrUnauthorized
	}
	switch level {
	case Authenticated:
		return nil
	case OwnerOrAdmin:
		if actor.IsAdmin || actor.UserID == ownerID {
			return nil
		}
		return ErrForbidden
	case AdminOnly:
		if actor.IsAdmin {
			return nil
		}
		return ErrForbidden
	}
	return ErrForbidden
}
