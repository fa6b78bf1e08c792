package repository

import (
	"time"

	"github.com/executa/knowledge-engine/internal/model"
	"gorm.io/gorm"
)

// SessionRepository 处理会话数据访问
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建会话仓库
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create 创建处理会话
func (r *SessionRepository) Create(session *model.ProcessingSession) error {
	return r.db.Create(session).Error
}

// GetByID 获取会话
func (r *SessionRepository) GetByID(id string) (*model.ProcessingSession, error) {
	var session model.ProcessingSession
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Start 标记会话进入处理
func (r *SessionRepository) Start(id string, totalFiles int) error {
	now := time.Now()
	return r.db.Model(&model.ProcessingSession{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      model.SessionStatusProcessing,
		"total_files": totalFiles,
		"started_at":  &now,
	}).Error
}

// IncrementProcessed 处理成功计数加一
func (r *SessionRepository) IncrementProcessed(id string) error {
	return r.db.Model(&model.ProcessingSession{}).Where("id = ?", id).
		Update("processed_files", gorm.Expr("processed_files + 1")).Error
}

// IncrementError 处理失败计数加一
func (r *SessionRepository) IncrementError(id string) error {
	return r.db.Model(&model.ProcessingSession{}).Where("id = ?", id).
		Update("error_files", gorm.Expr("error_files + 1")).Error
}

// Complete 根据成败数落盘会话终态
func (r *SessionRepository) Complete(id string, processed, errored int) error {
	status := model.SessionStatusCompleted
	if processed == 0 && errored > 0 {
		status = model.SessionStatusError
	}
	now := time.Now()
	return r.db.Model(&model.ProcessingSession{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       status,
		"completed_at": &now,
	}).Error
}
