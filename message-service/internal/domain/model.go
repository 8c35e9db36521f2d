package domain

import (
	"time"

	"github.com/weiawesome/wes-io-chat/pkg/database"
)

// UserModel is the GORM model for users table. Users are created on first
// post, so the table only carries what moderation needs.
type UserModel struct {
	Username    string     `gorm:"type:varchar(64);primaryKey"`
	BannedUntil *time.Time `gorm:"index"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ConversationModel is the GORM model for conversations table.
type ConversationModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Slug      string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Title     string    `gorm:"type:varchar(128)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ConversationModel.
func (ConversationModel) TableName() string {
	return "conversations"
}

// ConversationMemberModel is the GORM model for conversation_members table.
type ConversationMemberModel struct {
	ConversationID int64     `gorm:"primaryKey;autoIncrement:false"`
	Username       string    `gorm:"type:varchar(64);primaryKey"`
	JoinedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ConversationMemberModel.
func (ConversationMemberModel) TableName() string {
	return "conversation_members"
}

// MessageModel is the GORM model for messages table.
type MessageModel struct {
	ID             int64            `gorm:"primaryKey;autoIncrement"`
	ConversationID int64            `gorm:"index;not null"`
	Sender         string           `gorm:"type:varchar(64);index;not null"`
	Content        string           `gorm:"type:text"`
	Type           string           `gorm:"column:message_type;type:varchar(16);not null"`
	Status         string           `gorm:"type:varchar(16);not null;default:active"`
	Metadata       database.JSONMap `gorm:"type:text"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message. The slug is resolved
// by the caller since the row only stores the conversation key.
func (m *MessageModel) ToDomain(conversationSlug string) *Message {
	return &Message{
		ID:             m.ID,
		ConversationID: conversationSlug,
		Sender:         m.Sender,
		Content:        m.Content,
		Type:           m.Type,
		Status:         m.Status,
		Metadata:       map[string]any(m.Metadata),
		CreatedAt:      m.CreatedAt,
	}
}

// AccountModel holds login credentials. It is kept apart from UserModel
// since users also appear by posting with an externally issued token.
type AccountModel struct {
	Username     string    `gorm:"type:varchar(64);primaryKey"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for AccountModel.
func (AccountModel) TableName() string {
	return "accounts"
}

// SettingModel is a key/value row for runtime-editable settings.
type SettingModel struct {
	Name      string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for SettingModel.
func (SettingModel) TableName() string {
	return "settings"
}

// Models lists every model for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&UserModel{},
		&AccountModel{},
		&ConversationModel{},
		&ConversationMemberModel{},
		&MessageModel{},
		&SettingModel{},
	}
}
