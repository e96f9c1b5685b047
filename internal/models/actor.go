package models

// Actor is the authenticated caller of a mutating operation.
// A nil *Actor means the request is anonymous.
type Actor struct {
	UserID     uint
	Username   string
	IsAdmin    bool
	IsVerified bool
}

// ActorFromUser snapshots the flags of a freshly loaded user.
func ActorFromUser(u User) *Actor {
	return &Actor{
		UserID:     u.ID,
		Username:   u.Username,
		IsAdmin:    u.IsAdmin,
		IsVerified: u.IsVerified,
	}
}
