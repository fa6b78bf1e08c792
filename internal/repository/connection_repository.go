package repository

import (
	"errors"
	"time"

	"github.com/executa/knowledge-engine/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConnectionRepository 数据源连接数据访问
type ConnectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository 创建连接仓库
func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// GetActive 获取账户在指定提供方的活跃连接，没有时返回 (nil, nil)
func (r *ConnectionRepository) GetActive(accountID, provider string) (*model.SourceConnection, error) {
	var conn model.SourceConnection
	err := r.db.Where("account_id = ? AND provider = ? AND is_active = ?", accountID, provider, true).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// Upsert 创建或更新连接，(account_id, provider) 唯一
func (r *ConnectionRepository) Upsert(conn *model.SourceConnection) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "access_token", "refresh_token", "expires_at", "is_active", "updated_at",
		}),
	}).Create(conn).Error
}

// UpdateTokens 刷新后的凭证单条 UPDATE 原子写回，
// 避免并发的第二次同步读到过期 token
func (r *ConnectionRepository) UpdateTokens(id, accessToken string, expiresAt time.Time) error {
	return r.db.Model(&model.SourceConnection{}).Where("id = ?", id).Updates(map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   &expiresAt,
	}).Error
}

// TouchLastSync 记录同步完成时间
func (r *ConnectionRepository) TouchLastSync(id string) error {
	now := time.Now()
	return r.db.Model(&model.SourceConnection{}).Where("id = ?", id).
		Update("last_sync_at", &now).Error
}

// Deactivate 断开连接
func (r *ConnectionRepository) Deactivate(accountID, provider string) error {
	return r.db.Model(&model.SourceConnection{}).
		Where("account_id = ? AND provider = ?", accountID, provider).
		Update("is_active", false).Error
}
