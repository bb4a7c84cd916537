package entity

// User represents a user in the system
type User struct {
	Id        string `json:"id" gorm:"column:id;primaryKey;size:64"`
	Username  string `json:"username" gorm:"column:username;size:64;uniqueIndex"`
	Email     string `json:"email" gorm:"column:email;size:128;uniqueIndex"`
	Avatar    string `json:"avatar" gorm:"column:avatar"`
	Role      string `json:"role" gorm:"column:role;size:16"`
	Password  string `json:"-" gorm:"column:password"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// UserInfo represents public user info (without password)
type UserInfo struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// ToUserInfo converts User to UserInfo
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		Id:       u.Id,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}

// Identity is the projection attached to an authenticated connection
type Identity struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// ToIdentity converts User to Identity
func (u *User) ToIdentity() *Identity {
	return &Identity{
		Id:       u.Id,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
