package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketModel is the gorm mapping of the tickets table.
type TicketModel struct {
	ID          uint              `gorm:"primaryKey"`
	TicketID    string            `gorm:"column:ticket_id;size:64;uniqueIndex;not null"`
	UserID      string            `gorm:"column:user_id;size:64;index:idx_tickets_user;not null"`
	Category    string            `gorm:"size:100;index;not null"`
	Status      string            `gorm:"size:16;index;not null;default:open"`
	FormData    map[string]string `gorm:"column:form_data;type:text;serializer:json"`
	ThreadID    *string           `gorm:"column:thread_id;size:64;index"`
	CommunityID string            `gorm:"column:community_id;size:64;index:idx_tickets_user;not null"`
	CreatedAt   time.Time         `gorm:"not null"`
	ClosedAt    *time.Time
	ClosedBy    *string `gorm:"size:64"`
}

func (TicketModel) TableName() string { return "tickets" }

// CooldownModel is the gorm mapping of the cooldowns table.
type CooldownModel struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"column:user_id;size:64;uniqueIndex:idx_cooldown_user_type;not null"`
	Type      string    `gorm:"size:64;uniqueIndex:idx_cooldown_user_type;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func (CooldownModel) TableName() string { return "cooldowns" }

// SettingModel is the gorm mapping of the settings table.
type SettingModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"column:setting_key;size:128;uniqueIndex;not null"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (SettingModel) TableName() string { return "settings" }

// AutoMigrate creates or updates the gorm-managed tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TicketModel{}, &CooldownModel{}, &SettingModel{})
}

// NewGormStore wires the gorm repositories over db.
func NewGormStore(db *gorm.DB) Store {
	return Store{
		Tickets:   &gormTicketRepository{db: db},
		Cooldowns: &gormCooldownRepository{db: db},
		Settings:  &gormSettingsRepository{db: db},
	}
}

type gormTicketRepository struct {
	db *gorm.DB
}

func (r *gormTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	model := toTicketModel(ticket)
	err := r.db.WithContext(ctx).Create(&model).Error
	if isDuplicateKey(err) {
		return ErrDuplicateID
	}
	return err
}

func (r *gormTicketRepository) GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return r.first(r.db.WithContext(ctx).Where("ticket_id = ?", ticketID))
}

func (r *gormTicketRepository) GetByThreadID(ctx context.Context, threadID string) (*domain.Ticket, error) {
	return r.first(r.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("created_at DESC"))
}

func (r *gormTicketRepository) first(tx *gorm.DB) (*domain.Ticket, error) {
	var model TicketModel
	if err := tx.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ticket := model.toDomain()
	return &ticket, nil
}

func (r *gormTicketRepository) ListByUser(ctx context.Context, userID, communityID string) ([]domain.Ticket, error) {
	return r.find(r.db.WithContext(ctx).Where("user_id = ? AND community_id = ?", userID, communityID))
}

func (r *gormTicketRepository) ListOpenByUser(ctx context.Context, userID, communityID string) ([]domain.Ticket, error) {
	return r.find(r.db.WithContext(ctx).
		Where("user_id = ? AND community_id = ? AND status = ?", userID, communityID, domain.TicketStatusOpen))
}

func (r *gormTicketRepository) ListByCommunity(ctx context.Context, communityID string, status *domain.TicketStatus) ([]domain.Ticket, error) {
	tx := r.db.WithContext(ctx).Where("community_id = ?", communityID)
	if status != nil {
		tx = tx.Where("status = ?", string(*status))
	}
	return r.find(tx)
}

func (r *gormTicketRepository) find(tx *gorm.DB) ([]domain.Ticket, error) {
	var models []TicketModel
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Ticket, 0, len(models))
	for _, m := range models {
		result = append(result, m.toDomain())
	}
	return result, nil
}

func (r *gormTicketRepository) UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus, closedBy *string, at time.Time) (*domain.Ticket, error) {
	var updated TicketModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current TicketModel
		if err := tx.Where("ticket_id = ?", ticketID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		updates := map[string]any{"status": string(status)}
		switch {
		case status == domain.TicketStatusClosed && current.Status == string(domain.TicketStatusClosed):
			// already closed; the first close stays recorded
		case status == domain.TicketStatusClosed:
			updates["closed_at"] = at
			updates["closed_by"] = closedBy
		default:
			updates["closed_at"] = nil
			updates["closed_by"] = nil
		}
		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("ticket_id = ?", ticketID).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	ticket := updated.toDomain()
	return &ticket, nil
}

func (r *gormTicketRepository) Statistics(ctx context.Context, communityID string) (*domain.TicketStatistics, error) {
	stats := &domain.TicketStatistics{ByCategory: []domain.CategoryCount{}}
	base := r.db.WithContext(ctx).Model(&TicketModel{}).Where("community_id = ?", communityID)

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", domain.TicketStatusOpen).Count(&stats.Open).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", domain.TicketStatusClosed).Count(&stats.Closed).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("category").
		Scan(&stats.ByCategory).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *gormTicketRepository) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND closed_at < ?", domain.TicketStatusClosed, cutoff).
		Delete(&TicketModel{})
	return res.RowsAffected, res.Error
}

type gormCooldownRepository struct {
	db *gorm.DB
}

func (r *gormCooldownRepository) Upsert(ctx context.Context, userID, cooldownType string, expiresAt time.Time) error {
	model := CooldownModel{UserID: userID, Type: cooldownType, ExpiresAt: expiresAt}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
	}).Create(&model).Error
}

func (r *gormCooldownRepository) GetActive(ctx context.Context, userID, cooldownType string, now time.Time) (*domain.Cooldown, error) {
	var model CooldownModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND expires_at > ?", userID, cooldownType, now).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Cooldown{UserID: model.UserID, Type: model.Type, ExpiresAt: model.ExpiresAt}, nil
}

func (r *gormCooldownRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&CooldownModel{})
	return res.RowsAffected, res.Error
}

func (r *gormCooldownRepository) Delete(ctx context.Context, userID, cooldownType string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, cooldownType).
		Delete(&CooldownModel{}).Error
}

type gormSettingsRepository struct {
	db *gorm.DB
}

func (r *gormSettingsRepository) Set(ctx context.Context, key string, value []byte, at time.Time) error {
	model := SettingModel{Key: key, Value: string(value), UpdatedAt: at}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
}

func (r *gormSettingsRepository) Get(ctx context.Context, key string) (*domain.Setting, error) {
	var model SettingModel
	err := r.db.WithContext(ctx).Where("setting_key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Setting{Key: model.Key, Value: []byte(model.Value), UpdatedAt: model.UpdatedAt}, nil
}

func (r *gormSettingsRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("setting_key = ?", key).Delete(&SettingModel{}).Error
}

func (r *gormSettingsRepository) List(ctx context.Context) ([]domain.Setting, error) {
	var models []SettingModel
	if err := r.db.WithContext(ctx).Order("setting_key").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Setting, 0, len(models))
	for _, m := range models {
		result = append(result, domain.Setting{Key: m.Key, Value: []byte(m.Value), UpdatedAt: m.UpdatedAt})
	}
	return result, nil
}

func toTicketModel(t *domain.Ticket) TicketModel {
	return TicketModel{
		TicketID:    t.ID,
		UserID:      t.UserID,
		Category:    t.Category,
		Status:      string(t.Status),
		FormData:    formOrEmpty(t.FormData),
		CommunityID: t.CommunityID,
		CreatedAt:   t.CreatedAt,
		ClosedAt:    t.ClosedAt,
		ThreadID:    nullIfEmpty(t.ThreadID),
		ClosedBy:    t.ClosedBy,
	}
}

func (m TicketModel) toDomain() domain.Ticket {
	ticket := domain.Ticket{
		ID:          m.TicketID,
		UserID:      m.UserID,
		Category:    m.Category,
		Status:      domain.TicketStatus(m.Status),
		FormData:    formOrEmpty(m.FormData),
		CommunityID: m.CommunityID,
		CreatedAt:   m.CreatedAt,
		ClosedAt:    m.ClosedAt,
		ClosedBy:    m.ClosedBy,
	}
	if m.ThreadID != nil {
		ticket.ThreadID = *m.ThreadID
	}
	return ticket
}

// isDuplicateKey matches the unique-constraint errors of sqlite and mysql.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
