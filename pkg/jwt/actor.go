package jwt

import (
	"fmt"
	"strconv"

	"github.com/mbeoliero/devcircle/pkg/constant"
)

// prefixLength is the width of every actor prefix ("u___", "md__", "ad__")
const prefixLength = 4

var rolePrefixes = map[string]string{
	constant.RoleUser:      "u___",
	constant.RoleModerator: "md__",
	constant.RoleAdmin:     "ad__",
}

// Actor is an identity of the main site, which numbers its accounts with integers.
type Actor struct {
	Id   int64
	Role string
}

// ToUserId converts an Actor to this service's string user id.
//
//	Actor{Id: 42, Role: "user"}.ToUserId()  => "u___42"
//	Actor{Id: 7, Role: "admin"}.ToUserId()  => "ad__7"
func (a *Actor) ToUserId() (string, error) {
	prefix, ok := rolePrefixes[a.Role]
	if !ok {
		return "", fmt.Errorf("failed to transfer actor to user id, role: %s", a.Role)
	}
	return fmt.Sprintf("%s%d", prefix, a.Id), nil
}

// FromUserId parses a string user id back into an Actor.
func (a *Actor) FromUserId(userId string) error {
	if a == nil {
		return fmt.Errorf("actor is nil")
	}
	if len(userId) < prefixLength+1 {
		return fmt.Errorf("invalid userId: %q", userId)
	}
	prefix, idStr := userId[:prefixLength], userId[prefixLength:]

	role := ""
	for r, p := range rolePrefixes {
		if p == prefix {
			role = r
			break
		}
	}
	if role == "" {
		return fmt.Errorf("unknown prefix: %q", prefix)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id: %q", idStr)
	}
	a.Id = id
	a.Role = role
	return nil
}
