// internal/models/user.go
package models

import "time"

// User 注册用户
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRecord 持久化用，包含密码哈希
type UserRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToUser 转换为对外结构
func (r UserRecord) ToUser() *User {
	return &User{ID: r.ID, Email: r.Email, PasswordHash: r.PasswordHash, CreatedAt: r.CreatedAt}
}

// NewUserRecord 从用户构造持久化记录
func NewUserRecord(u *User) UserRecord {
	return UserRecord{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
}
