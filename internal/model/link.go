package model

import "time"

// AssistantFileLink 助手与知识文件的多对多关联
// 指向同一 file_id 的行数即该文件的引用计数
type AssistantFileLink struct {
	AssistantID string    `gorm:"primaryKey;size:36" json:"assistant_id"`
	FileID      string    `gorm:"primaryKey;size:36;index" json:"file_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (AssistantFileLink) TableName() string {
	return "assistant_files"
}
