package entities

import (
	"time"
)

// Server is a remote library server the device syncs reading state with.
type Server struct {
	ID        string    `gorm:"primaryKey;size:128" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	URL       string    `gorm:"size:2048;not null" json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Token is the encrypted API token.
	// Stored as base64-encoded AES-256-GCM ciphertext
	Token string `gorm:"type:text" json:"-"`

	// LastSyncedAt is when a sync cycle last completed for this server
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// TableName specifies the table name for GORM
func (Server) TableName() string {
	return "servers"
}

// ServerCredentials holds a server's decrypted connection details.
// This is never stored directly in the database
type ServerCredentials struct {
	ID    string
	Name  string
	URL   string
	Token string
}
