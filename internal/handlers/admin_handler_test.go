package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rugbuster/internal/auth"
	"rugbuster/internal/database"
	"rugbuster/internal/models"
	"rugbuster/internal/services"
)

func setupAdminRouter(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	adminService := services.NewAdminService(db, nil)
	adminHandler := NewAdminHandler(adminService, nil)

	router := gin.New()
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(adminHandler.AdminMiddleware())
	admin.GET("/nominations", adminHandler.GetNominations)
	return db, router
}

func getWithToken(router *gin.Engine, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/nominations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	return w
}

func TestAdminRoutesRequireAllowListedUser(t *testing.T) {
	db, router := setupAdminRouter(t)

	// A perfectly valid session for an unbound account gets no console
	// access, no matter what contact details it claims elsewhere.
	user := models.User{WalletAddress: "wallet-regular", Nickname: "Regular_One"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if w := getWithToken(router, token); w.Code != http.StatusForbidden {
		t.Errorf("unbound user reached admin console: %d", w.Code)
	}

	// The account bound in admin_users gets through.
	adminAccount := models.User{WalletAddress: "wallet-mod", Nickname: "Mod_One"}
	if err := db.Create(&adminAccount).Error; err != nil {
		t.Fatalf("failed to create admin account: %v", err)
	}
	binding := models.AdminUser{UserID: adminAccount.ID, Email: "mod@rugbuster.io"}
	if err := db.Create(&binding).Error; err != nil {
		t.Fatalf("failed to create allow-list row: %v", err)
	}
	adminToken, err := auth.GenerateToken(adminAccount.ID)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if w := getWithToken(router, adminToken); w.Code != http.StatusOK {
		t.Errorf("allow-listed user rejected: %d", w.Code)
	}

	// The unbound session stays locked out after the allow-list grows.
	if w := getWithToken(router, token); w.Code != http.StatusForbidden {
		t.Errorf("unbound user reached admin console: %d", w.Code)
	}
}
