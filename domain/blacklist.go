package domain

import "time"

// BlacklistIP is a permanently blocked client address. Entries stay
// until an administrator removes them; they are not time-boxed.
type BlacklistIP struct {
	ID        string    `bson:"_id,omitempty"`
	IPAddress string    `bson:"ip_address"`
	Reason    string    `bson:"reason,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}
