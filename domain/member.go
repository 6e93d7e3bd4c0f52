package domain

import "time"

// Member is a registered club member. The password is stored hashed;
// lock state lives in a separate AccountLock record.
type Member struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	Email        string     `bson:"email,omitempty"`
	PasswordHash string     `bson:"password_hash"`
	Role         Role       `bson:"role"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty"`
}
