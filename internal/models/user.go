// internal/models/user.go
package models

type User struct {
	BaseModel
	Username string     `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Email    string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	UserType UserType   `json:"user_type" gorm:"type:varchar(20);not null;default:'seller'"`
	Status   UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`

	// Seller-facing push configuration, forwarded verbatim to the push sender.
	PushToken   string `json:"-" gorm:"size:512"`
	ProfileData JSONB  `json:"profile_data,omitempty" gorm:"type:jsonb"`
}
