package users

import "time"

// User is one durable credential record. PasswordHash is an opaque salted
// digest string (bcrypt embeds its own salt); LastIP records the peer address
// seen at registration or most recent login.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastIP       string
}
