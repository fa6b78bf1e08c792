package model

import "time"

// 处理会话状态
const (
	SessionStatusPending    = "PENDING"
	SessionStatusProcessing = "PROCESSING"
	SessionStatusCompleted  = "COMPLETED"
	SessionStatusError      = "ERROR"
)

// ProcessingSession 一次直传批次的处理会话统计
type ProcessingSession struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	AccountID   string `gorm:"size:36;index" json:"account_id"`
	SessionName string `gorm:"size:255" json:"session_name"`
	Status      string `gorm:"size:20;index;default:PENDING" json:"status"`

	TotalFiles     int `gorm:"default:0" json:"total_files"`
	ProcessedFiles int `gorm:"default:0" json:"processed_files"`
	ErrorFiles     int `gorm:"default:0" json:"error_files"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (ProcessingSession) TableName() string {
	return "processing_sessions"
}
