package services

import (
	"marketplace-api/internal/apperr"
	"marketplace-api/internal/models"
)

// Authorize grants access when the held roles share at least one member with
// the required set. Role levels play no part: ADMIN does not satisfy a
// SELLER-only requirement.
func Authorize(held, required models.RoleSet) bool {
	return held.Intersects(required)
}

func RequireAny(identity models.Identity, required ...models.Role) error {
	if !Authorize(identity.Roles, models.NewRoleSet(required...)) {
		return apperr.Forbidden("Insufficient permissions")
	}
	return nil
}
