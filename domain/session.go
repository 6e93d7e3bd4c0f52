package domain

import "time"

// Session binds a member to its currently valid token pair and the IP
// the pair was issued to. At most one session exists per member: saving
// a new one replaces the old record, which makes the previous tokens
// unresolvable even while their signatures still verify.
type Session struct {
	MemberID     string    `json:"member_id" redis:"member_id"`
	Role         Role      `json:"role" redis:"role"`
	AccessToken  string    `json:"access_token" redis:"access_token"`
	RefreshToken string    `json:"refresh_token" redis:"refresh_token"`
	IP           string    `json:"ip" redis:"ip"`
	CreatedAt    time.Time `json:"created_at" redis:"created_at"`
}

// IssuedTo reports whether the session was issued to the given client IP.
func (s *Session) IssuedTo(ip string) bool {
	return s.IP == ip
}
