package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rugbuster/internal/logger"
	"rugbuster/internal/models"
	"rugbuster/internal/realtime"
)

var (
	// ErrAlreadyActed is returned when a user repeats a countable action
	// on the same nomination.
	ErrAlreadyActed = errors.New("user has already performed this action")
	// ErrNotFound is returned when the target nomination does not exist.
	ErrNotFound = errors.New("nomination not found")
	// ErrInvalidInput is returned for submissions failing validation.
	ErrInvalidInput = errors.New("invalid input")
)

// NominationService owns every read and write against the nominations
// table on the user-facing path. Counter updates are single UPDATE
// expressions and the duplicate guard is backed by a unique index, so
// concurrent votes serialize instead of losing increments.
type NominationService struct {
	db   *gorm.DB
	feed realtime.Publisher
}

// NewNominationService creates a new NominationService. feed may be nil
// when no change-feed consumers exist (tests).
func NewNominationService(db *gorm.DB, feed realtime.Publisher) *NominationService {
	return &NominationService{db: db, feed: feed}
}

// SubmitInput carries the fields collected by the nomination form.
type SubmitInput struct {
	Name            string
	TwitterHandle   string
	ScamDescription string
	AmountStolenUSD decimal.Decimal
	TokenName       *string
}

// SignatureDetails carries the lawsuit petition form fields.
type SignatureDetails struct {
	FirstName     string
	LastName      string
	Email         string
	Country       string
	PhoneNumber   string
	WalletAddress string
	AmountLostUSD decimal.Decimal
}

// ListApproved returns approved nominations, pinned entries first, then by
// vote count descending. Rank is the 1-based position in this order.
func (s *NominationService) ListApproved() ([]models.Nomination, error) {
	var nominations []models.Nomination
	err := s.db.Where("status = ?", models.StatusApproved).
		Order("is_pinned DESC").
		Order("votes DESC").
		Find(&nominations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list approved nominations: %w", err)
	}
	return nominations, nil
}

// ListPending returns pending nominations, newest first.
func (s *NominationService) ListPending() ([]models.Nomination, error) {
	var nominations []models.Nomination
	err := s.db.Where("status = ?", models.StatusPending).
		Order("created_at DESC").
		Find(&nominations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending nominations: %w", err)
	}
	return nominations, nil
}

// GetByID returns one nomination by numeric ID.
func (s *NominationService) GetByID(id uint) (*models.Nomination, error) {
	var nomination models.Nomination
	if err := s.db.First(&nomination, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &nomination, nil
}

// Submit creates one nomination in pending status with the creator
// stamped. The handle is stored without a leading "@".
func (s *NominationService) Submit(userID uint, input SubmitInput) (*models.Nomination, error) {
	name := strings.TrimSpace(input.Name)
	handle := strings.TrimPrefix(strings.TrimSpace(input.TwitterHandle), "@")
	description := strings.TrimSpace(input.ScamDescription)

	if name == "" || handle == "" || description == "" {
		return nil, fmt.Errorf("%w: name, twitter handle and description are required", ErrInvalidInput)
	}
	if input.AmountStolenUSD.IsNegative() {
		return nil, fmt.Errorf("%w: amount stolen cannot be negative", ErrInvalidInput)
	}

	nomination := models.Nomination{
		PublicID:        uuid.NewString(),
		Name:            name,
		TwitterHandle:   handle,
		ScamDescription: description,
		AmountStolenUSD: input.AmountStolenUSD,
		TokenName:       input.TokenName,
		Status:          models.StatusPending,
		CreatedBy:       userID,
	}

	if err := s.db.Create(&nomination).Error; err != nil {
		return nil, fmt.Errorf("failed to create nomination: %w", err)
	}

	logger.Info("nomination submitted",
		zap.Uint("id", nomination.ID), zap.Uint("user_id", userID))

	s.publish(realtime.EventInsert, nomination.ID, &nomination)
	return &nomination, nil
}

// Vote counts one vote for the nomination. Ordinary users may vote once
// per nomination; admins bypass the duplicate guard (and leave no action
// row), allowing repeated curation increments.
func (s *NominationService) Vote(userID uint, nominationID uint, isAdmin bool) (*models.Nomination, error) {
	return s.countAction(userID, nominationID, models.ActionVote, isAdmin, nil)
}

// SignLawsuit counts one lawsuit signature and records the signer details.
func (s *NominationService) SignLawsuit(userID uint, nominationID uint, details SignatureDetails, isAdmin bool) (*models.Nomination, error) {
	if details.WalletAddress != "" {
		if _, err := base58.Decode(details.WalletAddress); err != nil {
			return nil, fmt.Errorf("%w: wallet address is not valid base58", ErrInvalidInput)
		}
	}
	if details.AmountLostUSD.IsNegative() {
		return nil, fmt.Errorf("%w: amount lost cannot be negative", ErrInvalidInput)
	}
	return s.countAction(userID, nominationID, models.ActionLawsuitSign, isAdmin, &details)
}

// countAction performs the guarded increment inside one transaction:
// existence check, action-row insert (ordinary users only), then a single
// "counter = counter + 1" update. The unique index on (user, nomination,
// kind) closes the check-then-insert race: the losing writer gets a
// duplicate-key error and no counter update happens.
func (s *NominationService) countAction(userID uint, nominationID uint, kind string, isAdmin bool, details *SignatureDetails) (*models.Nomination, error) {
	column := "votes"
	if kind == models.ActionLawsuitSign {
		column = "lawsuit_signatures"
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var nomination models.Nomination
		if err := tx.First(&nomination, nominationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !isAdmin {
			var existing models.UserAction
			err := tx.Where("user_id = ? AND nomination_id = ? AND kind = ?",
				userID, nominationID, kind).First(&existing).Error
			if err == nil {
				return ErrAlreadyActed
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			action := models.UserAction{
				UserID:       userID,
				NominationID: nominationID,
				Kind:         kind,
			}
			if err := tx.Create(&action).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyActed
				}
				return fmt.Errorf("failed to record action: %w", err)
			}
		}

		if details != nil {
			signature := models.LawsuitSignature{
				UserID:        userID,
				NominationID:  nominationID,
				FirstName:     details.FirstName,
				LastName:      details.LastName,
				Email:         details.Email,
				Country:       details.Country,
				PhoneNumber:   details.PhoneNumber,
				WalletAddress: details.WalletAddress,
				AmountLostUSD: details.AmountLostUSD,
			}
			if err := tx.Create(&signature).Error; err != nil {
				return fmt.Errorf("failed to record signature: %w", err)
			}
		}

		result := tx.Model(&models.Nomination{}).
			Where("id = ?", nominationID).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1))
		if result.Error != nil {
			return fmt.Errorf("failed to update %s: %w", column, result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	nomination, err := s.GetByID(nominationID)
	if err != nil {
		return nil, err
	}

	logger.Info("action counted",
		zap.String("kind", kind), zap.Uint("nomination_id", nominationID),
		zap.Uint("user_id", userID), zap.Bool("admin", isAdmin))

	s.publish(realtime.EventUpdate, nominationID, nomination)
	return nomination, nil
}

func (s *NominationService) publish(eventType string, id uint, row *models.Nomination) {
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
