package auth

// CanModify reports whether the caller may edit or delete a resource owned by
// ownerID. Admins may modify anything.
func CanModify(identity Identity, ownerID int64) bool {
	if identity.IsAdmin {
		return true
	}
	return identity.ID > 0 && identity.ID == ownerID
}
