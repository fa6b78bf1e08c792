package model

import "time"

// 外部数据源提供方
const (
	ProviderUpload      = "upload"
	ProviderDropbox     = "dropbox"
	ProviderGoogleDrive = "googledrive"
	ProviderGmail       = "gmail"
)

// SourceConnection 账户级外部数据源凭证，每个 (account, provider) 一条
type SourceConnection struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	AccountID string `gorm:"size:36;uniqueIndex:idx_account_provider" json:"account_id"`
	Provider  string `gorm:"size:20;uniqueIndex:idx_account_provider" json:"provider"`

	Email        string     `gorm:"size:255" json:"email,omitempty"`
	AccessToken  string     `gorm:"size:2048" json:"-"`
	RefreshToken string     `gorm:"size:2048" json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	IsActive     bool       `gorm:"default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (SourceConnection) TableName() string {
	return "source_connections"
}
