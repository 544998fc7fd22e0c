package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Client представляет участника сделки (продавца или покупателя)
type Client struct {
	ID        string    `gorm:"primaryKey;size:50"`
	FirstName string    `gorm:"column:first_name;not null;size:50"`
	LastName  string    `gorm:"column:last_name;not null;size:50"`
	Email     string    `gorm:"column:email;not null;size:100;index"`
	Phone     string    `gorm:"column:phone;size:20"`
	AgentID   uint      `gorm:"column:agent_id;not null;index"` // Представляющий агент
	Agent     User      `gorm:"foreignKey:AgentID"`
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели Client
func (Client) TableName() string {
	return "clients"
}

// BeforeCreate хук для валидации перед созданием
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID(PrefixClient)
	}
	if len(c.FirstName) < 2 || len(c.FirstName) > 50 {
		return errors.New("first name must be between 2 and 50 characters")
	}
	if len(c.LastName) < 2 || len(c.LastName) > 50 {
		return errors.New("last name must be between 2 and 50 characters")
	}
	return nil
}

// FullName возвращает полное имя клиента
func (c *Client) FullName() string {
	return c.FirstName + " " + c.LastName
}
