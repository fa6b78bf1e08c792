package repository

import (
	"github.com/executa/knowledge-engine/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkRepository 助手-文件关联数据访问，负责引用计数删除规则
type LinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository 创建关联仓库
func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// CreateLink 建立关联，重复创建是幂等空操作
func (r *LinkRepository) CreateLink(assistantID, fileID string) error {
	link := &model.AssistantFileLink{
		AssistantID: assistantID,
		FileID:      fileID,
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error
}

// GetLink 获取关联记录
func (r *LinkRepository) GetLink(assistantID, fileID string) (*model.AssistantFileLink, error) {
	var link model.AssistantFileLink
	err := r.db.Where("assistant_id = ? AND file_id = ?", assistantID, fileID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// CountLinks 文件当前引用计数
func (r *LinkRepository) CountLinks(fileID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.AssistantFileLink{}).Where("file_id = ?", fileID).Count(&count).Error
	return count, err
}

// RemoveLinkResult 解除关联的结果
type RemoveLinkResult struct {
	RemainingLinks int64
	// DeletedFile 非 nil 时表示引用计数归零、记录已硬删除，
	// 调用方随后在事务外尽力清理存储对象
	DeletedFile *model.KnowledgeFile
}

// RemoveLink 解除关联；最后一个引用消失时在同一事务内硬删除文件记录
// 删除资格在事务内裁定，外部存储清理留给调用方（两阶段）
func (r *LinkRepository) RemoveLink(assistantID, fileID string) (*RemoveLinkResult, error) {
	result := &RemoveLinkResult{}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var link model.AssistantFileLink
		if err := tx.Where("assistant_id = ? AND file_id = ?", assistantID, fileID).First(&link).Error; err != nil {
			return err
		}

		if err := tx.Where("assistant_id = ? AND file_id = ?", assistantID, fileID).
			Delete(&model.AssistantFileLink{}).Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&model.AssistantFileLink{}).Where("file_id = ?", fileID).Count(&remaining).Error; err != nil {
			return err
		}
		result.RemainingLinks = remaining

		if remaining > 0 {
			return nil
		}

		var file model.KnowledgeFile
		if err := tx.Where("id = ?", fileID).First(&file).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.KnowledgeFile{}, "id = ?", fileID).Error; err != nil {
			return err
		}
		result.DeletedFile = &file
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
