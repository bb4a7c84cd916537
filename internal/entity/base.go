package entity

import (
	"fmt"
	"time"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// GenPairKey generates the canonical key of a direct conversation between two users
// Format: {min(userA,userB)}:{max(userA,userB)}
// Uses ":" as separator between userIds to support userIds containing "_"
func GenPairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%s:%s", userA, userB)
}
