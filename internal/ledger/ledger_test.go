package ledger

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/zulandar/beartank/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with the ledger tables. A single
// connection keeps every goroutine on the same in-memory database.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &models.Team{}, &models.Submission{}, &models.PointsLedgerEntry{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func approvedSubmission(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	if err := db.Create(&models.Submission{ID: id, Status: models.SubmissionApproved, TaskPoints: 20000}).Error; err != nil {
		t.Fatalf("create submission: %v", err)
	}
}

func countEntries(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	db.Model(&models.PointsLedgerEntry{}).Count(&n)
	return n
}

func TestIssue_Once(t *testing.T) {
	db := testDB(t)
	approvedSubmission(t, db, "sub1")

	e := Entry{EntityType: models.EntityTeam, EntityID: "team1", Amount: 25000, Reason: ReasonTaskApproved, SourceID: "sub1"}
	row, err := Issue(db, e)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if row == nil || row.Amount != 25000 || row.EntityID != "team1" {
		t.Fatalf("row = %+v, want 25000 for team1", row)
	}

	_, err = Issue(db, e)
	if !errors.Is(err, ErrAlreadyIssued) {
		t.Errorf("second Issue err = %v, want ErrAlreadyIssued", err)
	}
	if n := countEntries(t, db); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}

	var sub models.Submission
	db.First(&sub, "id = ?", "sub1")
	if !sub.PointsIssued {
		t.Error("PointsIssued = false after Issue")
	}
	if sub.PointsAwarded != 25000 {
		t.Errorf("PointsAwarded = %d, want the issued 25000", sub.PointsAwarded)
	}
}

func TestIssue_ConcurrentCallersOneEntry(t *testing.T) {
	db := testDB(t)
	approvedSubmission(t, db, "sub1")
	e := Entry{EntityType: models.EntityTeam, EntityID: "team1", Amount: 500, Reason: ReasonTaskApproved, SourceID: "sub1"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		issued  int
		skipped int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Issue(db, e)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				issued++
			case errors.Is(err, ErrAlreadyIssued):
				skipped++
			default:
				t.Errorf("Issue: %v", err)
			}
		}()
	}
	wg.Wait()

	if issued != 1 || skipped != 7 {
		t.Errorf("issued=%d skipped=%d, want 1 and 7", issued, skipped)
	}
	if n := countEntries(t, db); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

func TestIssue_ZeroAmountMarksIssuedWithoutEntry(t *testing.T) {
	db := testDB(t)
	approvedSubmission(t, db, "kit")

	row, err := Issue(db, Entry{EntityType: models.EntityUser, EntityID: "u1", Amount: 0, Reason: ReasonTaskApproved, SourceID: "kit"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if row != nil {
		t.Errorf("row = %+v, want nil for zero amount", row)
	}
	if n := countEntries(t, db); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}

	// A later edited bonus does not re-issue.
	_, err = Issue(db, Entry{EntityType: models.EntityUser, EntityID: "u1", Amount: 5000, Reason: ReasonTaskApproved, SourceID: "kit"})
	if !errors.Is(err, ErrAlreadyIssued) {
		t.Errorf("err = %v, want ErrAlreadyIssued", err)
	}
}

func TestIssue_ExistingEntryWithoutFlag(t *testing.T) {
	db := testDB(t)
	approvedSubmission(t, db, "sub1")
	if _, err := Append(db, Entry{EntityType: models.EntityTeam, EntityID: "team1", Amount: 100, Reason: ReasonTaskApproved, SourceID: "sub1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, err := Issue(db, Entry{EntityType: models.EntityTeam, EntityID: "team1", Amount: 100, Reason: ReasonTaskApproved, SourceID: "sub1"})
	if !errors.Is(err, ErrAlreadyIssued) {
		t.Errorf("err = %v, want ErrAlreadyIssued", err)
	}
	if n := countEntries(t, db); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
	var sub models.Submission
	db.First(&sub, "id = ?", "sub1")
	if !sub.PointsIssued {
		t.Error("flag should be repaired to true when the entry already exists")
	}
}

func TestIssue_MissingSubmission(t *testing.T) {
	db := testDB(t)
	_, err := Issue(db, Entry{EntityType: models.EntityTeam, EntityID: "t", Amount: 1, Reason: ReasonTaskApproved, SourceID: "ghost"})
	if err == nil || !strings.Contains(err.Error(), "ledger: submission not found: ghost") {
		t.Errorf("err = %v, want submission not found", err)
	}
}

func TestAppend_Validation(t *testing.T) {
	db := testDB(t)
	tests := []struct {
		name    string
		entry   Entry
		wantErr string
	}{
		{"bad entity type", Entry{EntityType: "school", EntityID: "x", Reason: "r", SourceID: "s"}, `ledger: entity type must be "team" or "user", got "school"`},
		{"missing entity id", Entry{EntityType: models.EntityTeam, Reason: "r", SourceID: "s"}, "ledger: entity id is required"},
		{"missing reason", Entry{EntityType: models.EntityTeam, EntityID: "x", SourceID: "s"}, "ledger: reason is required"},
		{"missing source", Entry{EntityType: models.EntityTeam, EntityID: "x", Reason: "r"}, "ledger: source id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Append(db, tt.entry)
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestAppend_DuplicateSourceRejected(t *testing.T) {
	db := testDB(t)
	e := Entry{EntityType: models.EntityTeam, EntityID: "team1", Amount: 10, Reason: ReasonTaskApproved, SourceID: "sub1"}
	if _, err := Append(db, e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := Append(db, e); err == nil {
		t.Error("duplicate (source, reason) should be rejected by the unique index")
	}
}

func TestTotals(t *testing.T) {
	db := testDB(t)
	teamID := "team1"
	db.Create(&models.User{ID: "u1", Email: "ana@school.test", TeamID: &teamID})
	db.Create(&models.User{ID: "u2", Email: "ben@school.test"})

	Append(db, Entry{EntityType: models.EntityTeam, EntityID: "team1", Amount: 20000, Reason: ReasonTaskApproved, SourceID: "a"})
	Append(db, Entry{EntityType: models.EntityTeam, EntityID: "team1", Amount: 5000, Reason: ReasonTaskApproved, SourceID: "b"})
	Append(db, Entry{EntityType: models.EntityUser, EntityID: "u1", Amount: 300, Reason: ReasonTaskApproved, SourceID: "c"})
	Append(db, Entry{EntityType: models.EntityUser, EntityID: "u2", Amount: 700, Reason: ReasonTaskApproved, SourceID: "d"})

	if got, _ := Total(db, models.EntityTeam, "team1"); got != 25000 {
		t.Errorf("team total = %d, want 25000", got)
	}
	if got, _ := Total(db, models.EntityTeam, "nobody"); got != 0 {
		t.Errorf("empty total = %d, want 0", got)
	}
	if got, err := UserTotal(db, "u1"); err != nil || got != 25300 {
		t.Errorf("UserTotal(u1) = %d, %v; want 25300", got, err)
	}
	if got, err := UserTotal(db, "u2"); err != nil || got != 700 {
		t.Errorf("UserTotal(u2) = %d, %v; want 700", got, err)
	}
	if _, err := UserTotal(db, "ghost"); err == nil {
		t.Error("UserTotal(ghost) should fail")
	}

	entries, err := Entries(db, models.EntityTeam, "team1")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
}

func TestLeaderboard(t *testing.T) {
	db := testDB(t)
	db.Create(&models.Team{ID: "t1", CompanyName: "Alpha"})
	db.Create(&models.Team{ID: "t2", CompanyName: "Bravo"})
	db.Create(&models.Team{ID: "t3", CompanyName: "Charlie"})
	db.Create(&models.Team{ID: "t4", CompanyName: "Delta"})

	Append(db, Entry{EntityType: models.EntityTeam, EntityID: "t2", Amount: 300, Reason: ReasonTaskApproved, SourceID: "a"})
	Append(db, Entry{EntityType: models.EntityTeam, EntityID: "t3", Amount: 100, Reason: ReasonTaskApproved, SourceID: "b"})
	Append(db, Entry{EntityType: models.EntityTeam, EntityID: "t1", Amount: 100, Reason: ReasonTaskApproved, SourceID: "c"})
	// User entries do not count toward team valuation.
	Append(db, Entry{EntityType: models.EntityUser, EntityID: "t4", Amount: 9999, Reason: ReasonTaskApproved, SourceID: "d"})

	board, err := Leaderboard(db)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(board) != 4 {
		t.Fatalf("board = %d rows, want 4", len(board))
	}
	want := []Standing{
		{Rank: 1, TeamID: "t2", CompanyName: "Bravo", Valuation: 300},
		{Rank: 2, TeamID: "t1", CompanyName: "Alpha", Valuation: 100},
		{Rank: 2, TeamID: "t3", CompanyName: "Charlie", Valuation: 100},
		{Rank: 4, TeamID: "t4", CompanyName: "Delta", Valuation: 0},
	}
	for i := range want {
		if board[i] != want[i] {
			t.Errorf("board[%d] = %+v, want %+v", i, board[i], want[i])
		}
	}
}
