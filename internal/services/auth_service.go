package services

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rugbuster/internal/logger"
	"rugbuster/internal/models"
	"rugbuster/internal/utils"
)

// AuthService handles authentication business logic
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// ProcessWalletLogin finds or creates a user by wallet address. The wallet
// address is the only identity the login proves; the request body carries
// nothing else worth persisting.
func (s *AuthService) ProcessWalletLogin(walletAddress string) (*models.User, error) {
	var user models.User

	result := s.db.Where("wallet_address = ?", walletAddress).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		nickname, err := utils.GenerateNickname()
		if err != nil {
			return nil, fmt.Errorf("failed to generate nickname: %w", err)
		}

		user = models.User{
			WalletAddress: walletAddress,
			Nickname:      nickname,
		}

		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		// Bootstrap an empty profile; display fields are filled in later
		// by the user, nothing reads them for authorization.
		profile := models.Profile{UserID: user.ID}
		if err := s.db.Create(&profile).Error; err != nil {
			logger.Warn("failed to create profile", zap.Uint("user_id", user.ID), zap.Error(err))
		}

		logger.Info("new user created",
			zap.String("wallet", walletAddress), zap.Uint("user_id", user.ID))
	} else if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	} else {
		logger.Info("user logged in",
			zap.String("wallet", walletAddress), zap.Uint("user_id", user.ID))
	}

	return &user, nil
}

// GetUserByID returns a user by primary key
func (s *AuthService) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProfile returns the profile row for a user
func (s *AuthService) GetProfile(userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
