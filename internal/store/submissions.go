package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

type SubmissionRepo interface {
	Create(ctx context.Context, sub *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	LatestForSession(ctx context.Context, sessionID string) (*Submission, error)
	CountForSession(ctx context.Context, sessionID string) (int64, error)
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{db: db, log: baseLog.With("repo", "SubmissionRepo")}
}

func (r *submissionRepo) Create(ctx context.Context, sub *Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var sub Submission
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepo) LatestForSession(ctx context.Context, sessionID string) (*Submission, error) {
	var sub Submission
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepo) CountForSession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&Submission{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
