package model

import "time"

// 文件状态
const (
	FileStatusPending    = "PENDING"
	FileStatusProcessing = "PROCESSING"
	FileStatusProcessed  = "PROCESSED"
	FileStatusError      = "ERROR"
)

// 提取质量置信度
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// 文件来源
const (
	SourceUpload      = "upload"
	SourceDropbox     = "dropbox"
	SourceGoogleDrive = "googledrive"
	SourceGmail       = "gmail"
)

// KnowledgeFile 知识文件，一条记录对应账户内一份物理内容
// (account_id, checksum) 在存活记录中唯一；引用计数归零时整行硬删除
type KnowledgeFile struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	AccountID string `gorm:"size:36;index;uniqueIndex:idx_account_checksum" json:"account_id"`
	Checksum  string `gorm:"size:64;uniqueIndex:idx_account_checksum" json:"checksum"`

	OriginalName string `gorm:"size:512" json:"original_name"`
	FileType     string `gorm:"size:32" json:"file_type"`
	MimeType     string `gorm:"size:128" json:"mime_type"`
	FileSize     int64  `gorm:"default:0" json:"file_size"`

	Status          string `gorm:"size:20;index;default:PENDING" json:"status"`
	ExtractedText   string `gorm:"type:text" json:"extracted_text,omitempty"`
	TextLength      int    `gorm:"default:0" json:"text_length"`
	PageCount       int    `gorm:"default:0" json:"page_count"`
	Confidence      string `gorm:"size:10" json:"confidence,omitempty"`
	ProcessingError string `gorm:"type:text" json:"processing_error,omitempty"`

	StorageBucket string `gorm:"size:255" json:"storage_bucket"`
	StorageKey    string `gorm:"size:1024" json:"storage_key"`

	Source       string `gorm:"size:20;index" json:"source"`
	SourceItemID string `gorm:"size:255" json:"source_item_id,omitempty"`
	SessionID    string `gorm:"size:36;index" json:"session_id,omitempty"`

	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (KnowledgeFile) TableName() string {
	return "knowledge_files"
}
