package models

import "time"

// Redirection schemes and statuses.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Redirection stores a domain redirect rule.
type Redirection struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Domain    string    `gorm:"size:253;index;not null" json:"domain"`
	Target    string    `gorm:"size:253;not null" json:"target"`
	Scheme    string    `gorm:"size:5;default:http" json:"scheme"`
	Status    int       `gorm:"default:301" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name
func (Redirection) TableName() string {
	return "redirections"
}
