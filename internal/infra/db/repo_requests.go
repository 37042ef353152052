package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vizpilot/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Save(ctx context.Context, rec domain.RequestRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if rec.RequestID == "" {
		return errors.New("request_id is required")
	}
	model, err := toModel(rec)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "error_code", "options_json", "response_json"}),
		}).
		Create(&model).Error
}

func (r *RequestRepository) Load(ctx context.Context, requestID string) (domain.RequestRecord, error) {
	if r.db == nil {
		return domain.RequestRecord{}, errDBUnavailable
	}
	var model RequestRecordModel
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RequestRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RequestRecord{}, err
	}
	return fromModel(model)
}

// ListChildren returns replays of requestID, oldest first.
func (r *RequestRepository) ListChildren(ctx context.Context, requestID string) ([]domain.RequestRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []RequestRecordModel
	if err := r.db.WithContext(ctx).
		Where("parent_request_id = ?", requestID).
		Order("created_at asc").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RequestRecord, 0, len(models))
	for _, m := range models {
		rec, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toModel(rec domain.RequestRecord) (RequestRecordModel, error) {
	opts, err := json.Marshal(rec.Options)
	if err != nil {
		return RequestRecordModel{}, fmt.Errorf("encode options: %w", err)
	}
	resp, err := json.Marshal(rec.Response)
	if err != nil {
		return RequestRecordModel{}, fmt.Errorf("encode response: %w", err)
	}
	created := time.Now().UTC()
	if rec.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, rec.CreatedAt); err == nil {
			created = t.UTC()
		}
	}
	model := RequestRecordModel{
		RequestID:    rec.RequestID,
		Status:       string(rec.Status),
		ErrorCode:    string(rec.ErrorCode),
		OptionsJSON:  opts,
		ResponseJSON: resp,
		CreatedAt:    created,
	}
	if rec.ParentRequestID != "" {
		parent := rec.ParentRequestID
		model.ParentRequestID = &parent
	}
	return model, nil
}

func fromModel(m RequestRecordModel) (domain.RequestRecord, error) {
	rec := domain.RequestRecord{
		RequestID: m.RequestID,
		Status:    domain.ResponseStatus(m.Status),
		ErrorCode: domain.ErrorCode(m.ErrorCode),
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if m.ParentRequestID != nil {
		rec.ParentRequestID = *m.ParentRequestID
	}
	if err := json.Unmarshal(m.OptionsJSON, &rec.Options); err != nil {
		return domain.RequestRecord{}, fmt.Errorf("decode options: %w", err)
	}
	if err := json.Unmarshal(m.ResponseJSON, &rec.Response); err != nil {
		return domain.RequestRecord{}, fmt.Errorf("decode response: %w", err)
	}
	return rec, nil
}
