package services

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rugbuster/internal/database"
	"rugbuster/internal/models"
	"rugbuster/internal/realtime"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// A uniquely named shared-cache memory DB keeps each test isolated
	// while letting gorm open extra connections against the same data.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// setupFileDB backs the database with a temp file. Concurrency tests need
// this: shared-cache memory databases fail concurrent writers with table
// locks, while a file-backed database queues them on the busy handler.
func setupFileDB(t *testing.T) *gorm.DB {
	path := filepath.Join(t.TempDir(), "rugbuster.db")
	dsn := "file:" + path + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, wallet string) models.User {
	user := models.User{
		WalletAddress: wallet,
		Nickname:      "Test_" + wallet,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createTestNomination(t *testing.T, db *gorm.DB, name string, votes int, status string) models.Nomination {
	nomination := models.Nomination{
		PublicID:        name + "-pub",
		Name:            name,
		TwitterHandle:   name + "_handle",
		ScamDescription: "test scam",
		AmountStolenUSD: decimal.NewFromInt(1000),
		Votes:           votes,
		Status:          status,
	}
	if err := db.Create(&nomination).Error; err != nil {
		t.Fatalf("failed to create nomination: %v", err)
	}
	return nomination
}

// capturingFeed records published events for assertions.
type capturingFeed struct {
	events []realtime.Event
}

func (f *capturingFeed) Publish(event realtime.Event) {
	f.events = append(f.events, event)
}

func TestSubmitCreatesPendingNomination(t *testing.T) {
	db := setupTestDB(t)
	service := NewNominationService(db, nil)
	user := createTestUser(t, db, "wallet-submit")

	token := "RUGX"
	nomination, err := service.Submit(user.ID, SubmitInput{
		Name:            "Alex Crypto Guru",
		TwitterHandle:   "@cryptoguru_alex",
		ScamDescription: "Created fake NFT project and disappeared with 500 ETH",
		AmountStolenUSD: decimal.NewFromInt(750000),
		TokenName:       &token,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if nomination.Status != models.StatusPending {
		t.Errorf("expected status pending, got %s", nomination.Status)
	}
	if nomination.TwitterHandle != "cryptoguru_alex" {
		t.Errorf("expected handle without @, got %q", nomination.TwitterHandle)
	}
	if nomination.CreatedBy != user.ID {
		t.Errorf("expected creator %d, got %d", user.ID, nomination.CreatedBy)
	}
	if !nomination.AmountStolenUSD.Equal(decimal.NewFromInt(750000)) {
		t.Errorf("amount not preserved: %s", nomination.AmountStolenUSD)
	}
	if nomination.PublicID == "" {
		t.Error("expected a public ID")
	}

	var count int64
	db.Model(&models.Nomination{}).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one nomination row, got %d", count)
	}
}

func TestSubmitValidation(t *testing.T) {
	db := setupTestDB(t)
	service := NewNominationService(db, nil)
	user := createTestUser(t, db, "wallet-validate")

	_, err := service.Submit(user.ID, SubmitInput{
		Name:            "",
		TwitterHandle:   "handle",
		ScamDescription: "desc",
		AmountStolenUSD: decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty name, got %v", err)
	}

	_, err = service.Submit(user.ID, SubmitInput{
		Name:            "Name",
		TwitterHandle:   "handle",
		ScamDescription: "desc",
		AmountStolenUSD: decimal.NewFromInt(-5),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative amount, got %v", err)
	}

	var count int64
	db.Model(&models.Nomination{}).Count(&count)
	if count != 0 {
		t.Errorf("invalid submissions must not create rows, got %d", count)
	}
}

func TestVoteOncePerUser(t *testing.T) {
	db := setupTestDB(t)
	feed := &capturingFeed{}
	service := NewNominationService(db, feed)
	user := createTestUser(t, db, "wallet-vote")
	nomination := createTestNomination(t, db, "scammer-a", 0, models.StatusApproved)

	updated, err := service.Vote(user.ID, nomination.ID, false)
	if err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if updated.Votes != 1 {
		t.Errorf("expected 1 vote, got %d", updated.Votes)
	}

	var actions int64
	db.Model(&models.UserAction{}).
		Where("user_id = ? AND nomination_id = ? AND kind = ?", user.ID, nomination.ID, models.ActionVote).
		Count(&actions)
	if actions != 1 {
		t.Errorf("expected exactly one vote action, got %d", actions)
	}

	// A repeat vote must not change anything.
	_, err = service.Vote(user.ID, nomination.ID, false)
	if !errors.Is(err, ErrAlreadyActed) {
		t.Fatalf("expected ErrAlreadyActed, got %v", err)
	}

	var reloaded models.Nomination
	db.First(&reloaded, nomination.ID)
	if reloaded.Votes != 1 {
		t.Errorf("repeat vote changed count: %d", reloaded.Votes)
	}
	db.Model(&models.UserAction{}).Where("user_id = ?", user.ID).Count(&actions)
	if actions != 1 {
		t.Errorf("repeat vote created an action row: %d", actions)
	}

	if len(feed.events) != 1 {
		t.Errorf("expected one change event, got %d", len(feed.events))
	} else if feed.events[0].Type != realtime.EventUpdate {
		t.Errorf("expected UPDATE event, got %s", feed.events[0].Type)
	}
}

func TestAdminVoteBypassesDuplicateGuard(t *testing.T) {
	db := setupTestDB(t)
	service := NewNominationService(db, nil)
	admin := createTestUser(t, db, "wallet-admin")
	nomination := createTestNomination(t, db, "scammer-b", 5, models.StatusApproved)

	for i := 0; i < 3; i++ {
		if _, err := service.Vote(admin.ID, nomination.ID, true); err != nil {
			t.Fatalf("admin vote %d failed: %v", i, err)
		}
	}

	var reloaded models.Nomination
	db.First(&reloaded, nomination.ID)
	if reloaded.Votes != 8 {
		t.Errorf("expected 8 votes after three admin votes, got %d", reloaded.Votes)
	}

	// Admin curation increments leave no action rows behind.
	var actions int64
	db.Model(&models.UserAction{}).Where("user_id = ?", admin.ID).Count(&actions)
	if actions != 0 {
		t.Errorf("admin votes must not create action rows, got %d", actions)
	}
}

func TestVotesFromDistinctUsersBothCount(t *testing.T) {
	db := setupTestDB(t)
	service := NewNominationService(db, nil)
	alice := createTestUser(t, db, "wallet-alice")
	bob := createTestUser(t, db, "wallet-bob")
	nomination := createTestNomination(t, db, "scammer-c", 100, models.StatusApproved)

	if _, err := service.Vote(alice.ID, nomination.ID, false); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if _, err := service.Vote(bob.ID, nomination.ID, false); err != nil {
		t.Fatalf("second vote failed: %v", err)
	}

	var reloaded models.Nomination
	db.First(&reloaded, nomination.ID)
	if reloaded.Votes != 102 {
		t.Errorf("expected 102 votes, got %d (lost update)", reloaded.Votes)
	}
}

// Two tabs firing the same user's first vote at once: exactly one may win,
// leaving one action row and one increment.
func TestConcurrentDuplicateVoteCountsOnce(t *testing.T) {
	db := setupFileDB(t)
	service := NewNominationService(db, nil)
	user := createTestUser(t, db, "wallet-twotabs")
	nomination := createTestNomination(t, db, "scammer-race", 100, models.StatusApproved)

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = service.Vote(user.ID, nomination.ID, false)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, ErrAlreadyActed) {
			t.Errorf("losing vote got %v, want ErrAlreadyActed", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one vote to win, got %d", winners)
	}

	var reloaded models.Nomination
	db.First(&reloaded, nomination.ID)
	if reloaded.Votes != 101 {
		t.Errorf("expected 101 votes, got %d", reloaded.Votes)
	}
	var actions int64
	db.Model(&models.UserAction{}).
		Where("user_id = ? AND nomination_id = ?", user.ID, nomination.ID).
		Count(&actions)
	if actions != 1 {
		t.Errorf("expected one action row, got %d", actions)
	}
}

// Two different users voting at the same instant must both count.
func TestConcurrentVotesFromDistinctUsersBothCount(t *testing.T) {
	db := setupFileDB(t)
	service := NewNominationService(db, nil)
	alice := createTestUser(t, db, "wallet-c-alice")
	bob := createTestUser(t, db, "wallet-c-bob")
	nomination := createTestNomination(t, db, "scammer-c2", 100, models.StatusApproved)

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, voter := range []uint{alice.ID, bob.ID} {
		wg.Add(1)
		go func(i int, voter uint) {
			defer wg.Done()
			<-start
			_, errs[i] = service.Vote(voter, nomination.ID, false)
		}(i, voter)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("vote %d failed: %v", i, err)
		}
	}

	var reloaded models.Nomination
	db.First(&reloaded, nomination.ID)
	if reloaded.Votes != 102 {
		t.Errorf("expected 102 votes, got %d (lost update)", reloaded.Votes)
	}
}

// The duplicate guard the vote path relies on: a second insert for the
// same (user, nomination, kind) triple fails with the translated
// duplicate-key error.
func TestDuplicateActionInsertHitsUniqueIndex(t *testing.T) {
	db := setupTestDB(t)

	action := models.UserAction{UserID: 1, NominationID: 2, Kind: models.ActionVote}
	if err := db.Create(&action).Error; err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	dup := models.UserAction{UserID: 1, NominationID: 2, Kind: models.ActionVote}
	if err := db.Create(&dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("expected gorm.ErrDuplicatedKey, got %v", err)
	}

	// A different kind for the same pair is a distinct action and inserts.
	sign := models.UserAction{UserID: 1, NominationID: 2, Kind: models.ActionLawsuitSign}
	if err := db.Create(&sign).Error; err != nil {
		t.Errorf("different kind rejected: %v", err)
	}
}

func TestSignLawsuitRecordsDetails(t *testing.T) {
	db := setupTestDB(t)
	service := NewNominationService(db, nil)
	user := createTestUser(t, db, "wallet-sign")
	nomination := createTestNomination(t, db, "scammer-d", 0, models.StatusApproved)

	details := SignatureDetails{
		FirstName:     "Jane",
		LastName:      "Doe",
		Email:         "jane@example.com",
		Country:       "Sweden",
		PhoneNumber:   "+46 70 000 00 00",
		WalletAddress: "4Nd1mY6vV8WqPkPrsGAGzagBkW4CXEPkV8rDQoLrushJ",
		AmountLostUSD: decimal.NewFromInt(2500),
	}

	updated, err := service.SignLawsuit(user.ID, nomination.ID, details, false)
	if err != nil {
		t.Fatalf("SignLawsuit failed: %v", err)
	}
	if updated.LawsuitSignatures != 1 {
		t.Errorf("expected 1 signature, got %d", updated.LawsuitSignatures)
	}

	var signature models.LawsuitSignature
	if err := db.Where("user_id = ? AND nomination_id = ?", user.ID, nomination.ID).First(&signature).Error; err != nil {
		t.Fatalf("signature row missing: %v", err)
	}
	if signature.Email != "jane@example.com" || signature.Country != "Sweden" {
		t.Errorf("signature details not preserved: %+v", signature)
	}

	// Signing twice is rejected like voting twice.
	_, err = service.SignLawsuit(user.ID, nomination.ID, details, false)
	if !errors.Is(err, ErrAlreadyActed) {
		t.Errorf("expected ErrAlreadyActed, got %v", err)
	}
}

func TestSignLawsuitRejectsBadWallet(t *testing.T) {
	db := setupTestDB(t)
	service := NewNominationService(db, nil)
	user := createTestUser(t, db, "wallet-badsig")
	nomination := createTestNomination(t, db, "scammer-e", 0, models.StatusApproved)

	_, err := service.SignLawsuit(user.ID, nomination.ID, SignatureDetails{
		FirstName:     "Jane",
		LastName:      "Doe",
		Email:         "jane@example.com",
		WalletAddress: "not-base58-0OIl",
	}, false)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad wallet, got %v", err)
	}

	var reloaded models.Nomination
	db.First(&reloaded, nomination.ID)
	if reloaded.LawsuitSignatures != 0 {
		t.Errorf("rejected signature changed counter: %d", reloaded.LawsuitSignatures)
	}
}

func TestVoteOnMissingNomination(t *testing.T) {
	db := setupTestDB(t)
	service := NewNominationService(db, nil)
	user := createTestUser(t, db, "wallet-missing")

	_, err := service.Vote(user.ID, 9999, false)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListApprovedOrdering(t *testing.T) {
	db := setupTestDB(t)
	service := NewNominationService(db, nil)

	createTestNomination(t, db, "low", 10, models.StatusApproved)
	createTestNomination(t, db, "high", 500, models.StatusApproved)
	createTestNomination(t, db, "hidden", 9000, models.StatusPending)
	pinned := createTestNomination(t, db, "pinned", 1, models.StatusApproved)
	db.Model(&pinned).Update("is_pinned", true)

	list, err := service.ListApproved()
	if err != nil {
		t.Fatalf("ListApproved failed: %v", err)
	}

	if len(list) != 3 {
		t.Fatalf("expected 3 approved entries, got %d", len(list))
	}
	if list[0].Name != "pinned" {
		t.Errorf("expected pinned entry first, got %s", list[0].Name)
	}
	if list[1].Name != "high" || list[2].Name != "low" {
		t.Errorf("expected votes-descending order, got %s then %s", list[1].Name, list[2].Name)
	}
	for _, n := range list {
		if n.Status != models.StatusApproved {
			t.Errorf("non-approved entry %s leaked into leaderboard", n.Name)
		}
	}
}
