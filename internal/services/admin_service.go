package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rugbuster/internal/logger"
	"rugbuster/internal/models"
	"rugbuster/internal/realtime"
)

// ErrInvalidDelta is returned for counter adjustments outside the allowed
// single and bulk steps.
var ErrInvalidDelta = errors.New("counter delta must be ±1 or ±100")

// AdminService backs the management console. Every mutation stamps the
// modifier, appends an audit log row and emits a change event.
type AdminService struct {
	db   *gorm.DB
	feed realtime.Publisher
	mu   sync.Mutex
}

// NewAdminService creates a new AdminService. feed may be nil in tests.
func NewAdminService(db *gorm.DB, feed realtime.Publisher) *AdminService {
	return &AdminService{db: db, feed: feed}
}

// GetAdminByUserID returns the allow-list row bound to an authenticated
// user, if any. The admin_users table is the sole source of truth for
// console access; the binding is provisioned out-of-band.
func (s *AdminService) GetAdminByUserID(userID uint) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := s.db.Where("user_id = ?", userID).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// IsAdminUser checks if a user id is on the allow-list
func (s *AdminService) IsAdminUser(userID uint) bool {
	if userID == 0 {
		return false
	}
	_, err := s.GetAdminByUserID(userID)
	return err == nil
}

// ListNominations returns nominations for the console, optionally filtered
// by status, newest first.
func (s *AdminService) ListNominations(status string) ([]models.Nomination, error) {
	var nominations []models.Nomination
	query := s.db.Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&nominations).Error; err != nil {
		return nil, fmt.Errorf("failed to list nominations: %w", err)
	}
	return nominations, nil
}

// NominationPatch lists the fields an admin may edit directly. Nil fields
// are left untouched.
type NominationPatch struct {
	Name              *string
	TwitterHandle     *string
	ScamDescription   *string
	AmountStolenUSD   *decimal.Decimal
	TokenName         *string
	Votes             *int
	LawsuitSignatures *int
	TargetSignatures  *int
}

// UpdateNomination applies a field patch to a nomination.
func (s *AdminService) UpdateNomination(adminID uint, id uint, patch NominationPatch) (*models.Nomination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.TwitterHandle != nil {
		updates["twitter_handle"] = *patch.TwitterHandle
	}
	if patch.ScamDescription != nil {
		updates["scam_description"] = *patch.ScamDescription
	}
	if patch.AmountStolenUSD != nil {
		updates["amount_stolen_usd"] = *patch.AmountStolenUSD
	}
	if patch.TokenName != nil {
		updates["token_name"] = *patch.TokenName
	}
	if patch.Votes != nil {
		updates["votes"] = max(*patch.Votes, 0)
	}
	if patch.LawsuitSignatures != nil {
		updates["lawsuit_signatures"] = max(*patch.LawsuitSignatures, 0)
	}
	if patch.TargetSignatures != nil {
		updates["target_signatures"] = *patch.TargetSignatures
	}
	if len(updates) == 0 {
		return s.getNomination(id)
	}

	nomination, err := s.applyUpdate(adminID, id, updates)
	if err != nil {
		return nil, err
	}

	s.LogAdminAction(adminID, "UPDATE_NOMINATION", "NOMINATION", &id, map[string]interface{}{
		"fields": keys(updates),
	})
	return nomination, nil
}

// AdjustCounter moves votes or lawsuit_signatures by delta (±1 or ±100),
// clamped at zero. This bypasses the user-action uniqueness mechanism by
// design: it is the manual curation path.
func (s *AdminService) AdjustCounter(adminID uint, id uint, field string, delta int) (*models.Nomination, error) {
	if field != "votes" && field != "lawsuit_signatures" {
		return nil, fmt.Errorf("unknown counter field: %s", field)
	}
	if delta != 1 && delta != -1 && delta != 100 && delta != -100 {
		return nil, ErrInvalidDelta
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	// Conditional update so the decrement never races below zero. If the
	// guard rejects the step the counter is floored at zero instead.
	result := s.db.Model(&models.Nomination{}).
		Where("id = ?", id).
		Where(field+" + ? >= 0", delta).
		UpdateColumns(map[string]interface{}{
			field:              gorm.Expr(field+" + ?", delta),
			"last_modified_by": adminID,
			"last_modified_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to adjust %s: %w", field, result.Error)
	}
	if result.RowsAffected == 0 {
		floor := s.db.Model(&models.Nomination{}).
			Where("id = ?", id).
			UpdateColumns(map[string]interface{}{
				field:              0,
				"last_modified_by": adminID,
				"last_modified_at": now,
			})
		if floor.Error != nil {
			return nil, fmt.Errorf("failed to floor %s: %w", field, floor.Error)
		}
		if floor.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	s.LogAdminAction(adminID, "ADJUST_COUNTER", "NOMINATION", &id, map[string]interface{}{
		"field": field,
		"delta": delta,
	})

	nomination, err := s.getNomination(id)
	if err != nil {
		return nil, err
	}
	s.publish(realtime.EventUpdate, id, nomination)
	return nomination, nil
}

// SetStatus transitions a nomination between pending, approved and
// rejected. There is no automatic promotion at any vote threshold; status
// only ever changes here.
func (s *AdminService) SetStatus(adminID uint, id uint, status string) (*models.Nomination, error) {
	if !models.ValidStatus(status) {
		return nil, fmt.Errorf("invalid status: %s", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nomination, err := s.applyUpdate(adminID, id, map[string]interface{}{"status": status})
	if err != nil {
		return nil, err
	}

	s.LogAdminAction(adminID, "SET_STATUS", "NOMINATION", &id, map[string]interface{}{
		"status": status,
	})
	logger.Info("nomination status changed",
		zap.Uint("id", id), zap.String("status", status), zap.Uint("admin_id", adminID))
	return nomination, nil
}

// SetPinned toggles the pin flag forcing an entry to sort first.
func (s *AdminService) SetPinned(adminID uint, id uint, pinned bool) (*models.Nomination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nomination, err := s.applyUpdate(adminID, id, map[string]interface{}{"is_pinned": pinned})
	if err != nil {
		return nil, err
	}

	s.LogAdminAction(adminID, "SET_PINNED", "NOMINATION", &id, map[string]interface{}{
		"pinned": pinned,
	})
	return nomination, nil
}

// SetImageURL writes an uploaded image's public URL onto the nomination.
func (s *AdminService) SetImageURL(adminID uint, id uint, url string) (*models.Nomination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nomination, err := s.applyUpdate(adminID, id, map[string]interface{}{"image_url": url})
	if err != nil {
		return nil, err
	}

	s.LogAdminAction(adminID, "SET_IMAGE", "NOMINATION", &id, nil)
	return nomination, nil
}

// DeleteNomination permanently removes a nomination.
func (s *AdminService) DeleteNomination(adminID uint, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Delete(&models.Nomination{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete nomination: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	s.LogAdminAction(adminID, "DELETE_NOMINATION", "NOMINATION", &id, nil)
	logger.Info("nomination deleted", zap.Uint("id", id), zap.Uint("admin_id", adminID))

	s.publish(realtime.EventDelete, id, nil)
	return nil
}

// LogAdminAction appends an audit row. Failures are logged, not returned:
// the audited action itself already succeeded.
func (s *AdminService) LogAdminAction(adminID uint, action, resourceType string, resourceID *uint, details map[string]interface{}) {
	entry := models.AdminLog{
		AdminID:      adminID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      models.JSONB(details),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		logger.Warn("failed to write admin log", zap.String("action", action), zap.Error(err))
	}
}

// GetAdminLogs returns recent audit entries, newest first.
func (s *AdminService) GetAdminLogs(limit int) ([]models.AdminLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.AdminLog
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch admin logs: %w", err)
	}
	return logs, nil
}

// DashboardTotals aggregates the console landing numbers.
type DashboardTotals struct {
	TotalUsers       int64 `json:"total_users"`
	TotalNominations int64 `json:"total_nominations"`
	PendingCount     int64 `json:"pending_count"`
	ApprovedCount    int64 `json:"approved_count"`
	TotalActions     int64 `json:"total_actions"`
}

// GetDashboard returns the current platform totals.
func (s *AdminService) GetDashboard() (*DashboardTotals, error) {
	var totals DashboardTotals
	s.db.Model(&models.User{}).Count(&totals.TotalUsers)
	s.db.Model(&models.Nomination{}).Count(&totals.TotalNominations)
	s.db.Model(&models.Nomination{}).Where("status = ?", models.StatusPending).Count(&totals.PendingCount)
	s.db.Model(&models.Nomination{}).Where("status = ?", models.StatusApproved).Count(&totals.ApprovedCount)
	s.db.Model(&models.UserAction{}).Count(&totals.TotalActions)
	return &totals, nil
}

// SnapshotPlatformStats upserts the daily stats row for the given date.
func (s *AdminService) SnapshotPlatformStats(date time.Time) (*models.PlatformStats, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var totalUsers, totalNominations, pending, approved int64
	s.db.Model(&models.User{}).Count(&totalUsers)
	s.db.Model(&models.Nomination{}).Count(&totalNominations)
	s.db.Model(&models.Nomination{}).Where("status = ?", models.StatusPending).Count(&pending)
	s.db.Model(&models.Nomination{}).Where("status = ?", models.StatusApproved).Count(&approved)

	type sums struct {
		Votes      int
		Signatures int
	}
	var total sums
	s.db.Model(&models.Nomination{}).
		Select("COALESCE(SUM(votes), 0) AS votes, COALESCE(SUM(lawsuit_signatures), 0) AS signatures").
		Scan(&total)

	stats := models.PlatformStats{
		Date:             day,
		TotalUsers:       int(totalUsers),
		TotalNominations: int(totalNominations),
		PendingCount:     int(pending),
		ApprovedCount:    int(approved),
		TotalVotes:       total.Votes,
		TotalSignatures:  total.Signatures,
	}

	var existing models.PlatformStats
	err := s.db.Where("date = ?", day).First(&existing).Error
	if err == nil {
		stats.ID = existing.ID
		if err := s.db.Save(&stats).Error; err != nil {
			return nil, fmt.Errorf("failed to update stats: %w", err)
		}
		return &stats, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := s.db.Create(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to create stats: %w", err)
	}
	return &stats, nil
}

// applyUpdate writes the updates plus modifier stamps and returns the
// fresh row. Callers hold s.mu.
func (s *AdminService) applyUpdate(adminID uint, id uint, updates map[string]interface{}) (*models.Nomination, error) {
	updates["last_modified_by"] = adminID
	updates["last_modified_at"] = time.Now()

	result := s.db.Model(&models.Nomination{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update nomination: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	nomination, err := s.getNomination(id)
	if err != nil {
		return nil, err
	}
	s.publish(realtime.EventUpdate, id, nomination)
	return nomination, nil
}

func (s *AdminService) getNomination(id uint) (*models.Nomination, error) {
	var nomination models.Nomination
	if err := s.db.First(&nomination, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &nomination, nil
}

func (s *AdminService) publish(eventType string, id uint, row *models.Nomination) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(realtime.Event{
		Table: models.Nomination{}.TableName(),
		Type:  eventType,
		ID:    id,
		Row:   row,
	})
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
