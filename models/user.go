package models

import (
	"time"
)

type User struct {
	ID           string       `bson:"_id" json:"id"`
	Username     string       `bson:"username" json:"username"`
	DisplayName  string       `bson:"display_name" json:"display_name"`
	PasswordHash string       `bson:"password_hash" json:"-"`
	Settings     UserSettings `bson:"settings" json:"settings"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
	LastLogin    *time.Time   `bson:"last_login,omitempty" json:"last_login,omitempty"`
}

// Theme modes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ThemeColors lists the accent colors a user can pick.
var ThemeColors = []string{
	"red", "pink", "purple", "blue", "green", "yellow",
	"cyan", "teal", "indigo", "orange", "deepPurple", "blueGrey",
}

type UserSettings struct {
	Theme         string `bson:"theme" json:"theme"`
	ThemeColor    string `bson:"theme_color" json:"theme_color"`
	Notifications bool   `bson:"notifications" json:"notifications"`
}

func DefaultSettings() UserSettings {
	return UserSettings{
		Theme:         ThemeLight,
		ThemeColor:    "red",
		Notifications: true,
	}
}

// SettingsUpdate carries a partial settings change; nil fields are left alone.
type SettingsUpdate struct {
	Theme         *string `json:"theme" binding:"omitempty,oneof=light dark"`
	ThemeColor    *string `json:"theme_color"`
	Notifications *bool   `json:"notifications"`
}

func IsThemeColor(c string) bool {
	for _, tc := range ThemeColors {
		if tc == c {
			return true
		}
	}
	return false
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=50"`
	Password string `json:"password" binding:"required,min=8"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenPairResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_exp"`
	RefreshExp   time.Time `json:"refresh_exp"`
	User         UserInfo  `json:"user"`
}

type UserInfo struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}
