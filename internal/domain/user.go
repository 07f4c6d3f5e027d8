package domain

import "time"

// User is a catalog subject. Credentials live with the external auth service.
type User struct {
	ID          string
	Username    string
	PhoneNumber *string
	CreatedAt   time.Time
}

// WishlistEntry records that a user wants to watch a movie.
type WishlistEntry struct {
	UserID  string
	Movie   Movie
	AddedAt time.Time
}
