package repository

import (
	"errors"
	"time"

	"github.com/executa/knowledge-engine/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileRepository 知识文件数据访问
type FileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建知识文件仓库
func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// GetByID 根据 ID 获取文件
func (r *FileRepository) GetByID(id string) (*model.KnowledgeFile, error) {
	var file model.KnowledgeFile
	err := r.db.Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// FindByChecksum 在账户存活记录中按内容哈希查找，未命中返回 (nil, nil)
func (r *FileRepository) FindByChecksum(accountID, checksum string) (*model.KnowledgeFile, error) {
	var file model.KnowledgeFile
	err := r.db.Where("account_id = ? AND checksum = ?", accountID, checksum).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// CreateIfAbsent 原子插入：(account_id, checksum) 冲突时不写入并返回 false
// 两个并发写入者竞争同一内容时，恰好一方成功，败方应改为链接幸存记录
func (r *FileRepository) CreateIfAbsent(file *model.KnowledgeFile) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "checksum"}},
		DoNothing: true,
	}).Create(file)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Update 更新文件记录
func (r *FileRepository) Update(file *model.KnowledgeFile) error {
	return r.db.Save(file).Error
}

// MarkProcessing 标记开始提取
func (r *FileRepository) MarkProcessing(id string) error {
	now := time.Now()
	return r.db.Model(&model.KnowledgeFile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":                model.FileStatusProcessing,
		"processing_started_at": &now,
		"processing_error":      "",
	}).Error
}

// MarkProcessed 标记提取完成并写入文本
func (r *FileRepository) MarkProcessed(id, text string, pageCount int, confidence string) error {
	now := time.Now()
	return r.db.Model(&model.KnowledgeFile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":                  model.FileStatusProcessed,
		"extracted_text":          text,
		"text_length":             len(text),
		"page_count":              pageCount,
		"confidence":              confidence,
		"processing_completed_at": &now,
	}).Error
}

// MarkError 标记提取失败，失败的文件不保留任何部分文本
func (r *FileRepository) MarkError(id, processingError string) error {
	now := time.Now()
	return r.db.Model(&model.KnowledgeFile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":                  model.FileStatusError,
		"extracted_text":          "",
		"text_length":             0,
		"confidence":              "",
		"processing_error":        processingError,
		"processing_completed_at": &now,
	}).Error
}

// ListByAccount 列出账户的全部文件
func (r *FileRepository) ListByAccount(accountID string, offset, limit int) ([]*model.KnowledgeFile, int64, error) {
	var files []*model.KnowledgeFile
	var total int64

	query := r.db.Model(&model.KnowledgeFile{}).Where("account_id = ?", accountID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&files).Error
	return files, total, err
}

// ListBySource 列出账户内来自某数据源的全部文件，供增量比对
func (r *FileRepository) ListBySource(accountID, source string) ([]*model.KnowledgeFile, error) {
	var files []*model.KnowledgeFile
	err := r.db.Where("account_id = ? AND source = ?", accountID, source).Find(&files).Error
	return files, err
}

// ListByAssistant 列出某助手已关联的全部文件
func (r *FileRepository) ListByAssistant(assistantID string) ([]*model.KnowledgeFile, error) {
	var files []*model.KnowledgeFile
	err := r.db.
		Joins("JOIN assistant_files ON assistant_files.file_id = knowledge_files.id").
		Where("assistant_files.assistant_id = ?", assistantID).
		Order("knowledge_files.created_at DESC").
		Find(&files).Error
	return files, err
}

// Delete 硬删除文件记录
func (r *FileRepository) Delete(id string) error {
	return r.db.Delete(&model.KnowledgeFile{}, "id = ?", id).Error
}
