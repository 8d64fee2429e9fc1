package model

import "time"

// ChatSession binds one conversation to one retrieval store.
type ChatSession struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	StoreID   string    `gorm:"size:256;not null" json:"store_id"`
	Title     string    `gorm:"size:128;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
