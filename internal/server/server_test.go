package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/zulandar/beartank/internal/curriculum"
	dbpkg "github.com/zulandar/beartank/internal/db"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/review"
	"github.com/zulandar/beartank/internal/submission"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "classroom-secret"

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := dbpkg.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
	task   *models.Task
}

// newEnv seeds two stages, a team of u1 and u2, a teamless u3 and an
// active teacher t1.
func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testDB(t)
	for _, s := range []curriculum.CreateStageOpts{
		{ID: "ideation", Title: "Ideation", Order: 1},
		{ID: "pitch", Title: "Pitch", Order: 2},
	} {
		if _, err := curriculum.CreateStage(db, s); err != nil {
			t.Fatalf("CreateStage: %v", err)
		}
	}
	for _, id := range []string{"u1", "u2", "u3"} {
		if _, err := curriculum.EnsureUser(db, curriculum.Identity{ID: id, Email: id + "@school.test"}); err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
	}
	if _, err := curriculum.EnsureUser(db, curriculum.Identity{ID: "t1", Email: "t1@school.test", Role: models.RoleTeacher}); err != nil {
		t.Fatalf("EnsureUser teacher: %v", err)
	}
	if _, err := curriculum.ActivateTeacher(db, "t1"); err != nil {
		t.Fatalf("ActivateTeacher: %v", err)
	}
	if _, err := curriculum.CreateTeam(db, curriculum.CreateTeamOpts{CompanyName: "Bear Bakery", MemberIDs: []string{"u1", "u2"}}); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	task, err := curriculum.CreateTask(db, curriculum.CreateTaskOpts{StageID: "ideation", Title: "Customer interviews", Points: 20000})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return &testEnv{
		db:     db,
		router: NewRouter(StartOpts{DB: db, JWTSecret: testSecret}),
		task:   task,
	}
}

func signToken(t *testing.T, secret, sub, role string) string {
	t.Helper()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: sub + "@school.test",
		Role:  role,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db is required")
	}
}

func TestStart_MissingSecret(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: testDB(t)})
	if err == nil || !strings.Contains(err.Error(), "jwt secret is required") {
		t.Errorf("error = %v, want jwt secret is required", err)
	}
}

func TestHealth_NoAuth(t *testing.T) {
	env := newEnv(t)
	w := env.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuth_Rejections(t *testing.T) {
	env := newEnv(t)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, identityClaims{Email: "x@school.test"}).
		SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		authz string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"bad signature", "Bearer " + signToken(t, "other-secret", "u1", "")},
		{"no subject", "Bearer " + noSubject},
		{"garbage", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"Bearer a b", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMe_CreatesProfileOnFirstCall(t *testing.T) {
	env := newEnv(t)
	w := env.do(t, http.MethodGet, "/api/me", signToken(t, testSecret, "newbie", ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var user models.User
	decode(t, w, &user)
	if user.ID != "newbie" || user.Role != models.RoleStudent || user.Status != models.UserActive {
		t.Errorf("user = %+v, want active student newbie", user)
	}
}

func TestPendingTeacherIsForbidden(t *testing.T) {
	env := newEnv(t)
	tok := signToken(t, testSecret, "t2", models.RoleTeacher)

	if w := env.do(t, http.MethodGet, "/api/me", tok, nil); w.Code != http.StatusOK {
		t.Fatalf("/me status = %d, want 200", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/analytics", tok, nil); w.Code != http.StatusForbidden {
		t.Errorf("/analytics status = %d, want 403", w.Code)
	}

	admin := signToken(t, testSecret, "a1", models.RoleAdmin)
	if w := env.do(t, http.MethodPost, "/api/admin/teachers/t2/activate", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("activate status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodGet, "/api/analytics", tok, nil); w.Code != http.StatusOK {
		t.Errorf("/analytics after activation status = %d, want 200", w.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newEnv(t)
	w := env.do(t, http.MethodGet, "/api/admin/teachers", signToken(t, testSecret, "t1", ""), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestSubmitAndReview(t *testing.T) {
	env := newEnv(t)
	student := signToken(t, testSecret, "u1", "")
	teacher := signToken(t, testSecret, "t1", "")

	w := env.do(t, http.MethodPost, "/api/tasks/"+env.task.ID+"/submissions", student,
		models.SubmissionContent{Link: "https://docs.test/interviews", TimelineNote: "Done Friday"})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body = %s", w.Code, w.Body.String())
	}
	var sub models.Submission
	decode(t, w, &sub)

	if w := env.do(t, http.MethodPost, "/api/submissions/"+sub.ID+"/review", student,
		reviewBody{Decision: models.SubmissionApproved}); w.Code != http.StatusForbidden {
		t.Errorf("student review status = %d, want 403", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/submissions/"+sub.ID+"/review", teacher,
		reviewBody{Decision: models.SubmissionApproved, Feedback: "Great work", BonusPoints: 500})
	if w.Code != http.StatusOK {
		t.Fatalf("review status = %d, body = %s", w.Code, w.Body.String())
	}
	var res review.Result
	decode(t, w, &res)
	if res.PointsAwarded != 20500 {
		t.Errorf("pointsAwarded = %d, want 20500", res.PointsAwarded)
	}
	if res.TeamStageStatus != models.StageComplete {
		t.Errorf("newTeamStageStatus = %q, want complete", res.TeamStageStatus)
	}

	// Approved is terminal.
	w = env.do(t, http.MethodPost, "/api/submissions/"+sub.ID+"/review", teacher,
		reviewBody{Decision: models.SubmissionNeedsChanges})
	if w.Code != http.StatusConflict {
		t.Errorf("re-review status = %d, want 409", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/me/valuation", signToken(t, testSecret, "u2", ""), nil)
	var val struct {
		Valuation int64 `json:"valuation"`
	}
	decode(t, w, &val)
	if val.Valuation != 20500 {
		t.Errorf("teammate valuation = %d, want 20500", val.Valuation)
	}

	w = env.do(t, http.MethodGet, "/api/notifications/unread-count", signToken(t, testSecret, "u2", ""), nil)
	var count struct {
		Unread int64 `json:"unread"`
	}
	decode(t, w, &count)
	if count.Unread != 1 {
		t.Errorf("teammate unread = %d, want 1", count.Unread)
	}
}

func TestReview_ErrorStatuses(t *testing.T) {
	env := newEnv(t)
	teacher := signToken(t, testSecret, "t1", "")
	sub, err := submission.Submit(env.db, submission.SubmitOpts{
		TaskID:  env.task.ID,
		UserID:  "u1",
		Content: models.SubmissionContent{TimelineNote: "Done"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown submission", "/api/submissions/missing/review", reviewBody{Decision: models.SubmissionApproved}, http.StatusNotFound},
		{"bad decision", "/api/submissions/" + sub.ID + "/review", reviewBody{Decision: "maybe"}, http.StatusBadRequest},
		{"negative bonus", "/api/submissions/" + sub.ID + "/review", reviewBody{Decision: models.SubmissionApproved, BonusPoints: -5}, http.StatusBadRequest},
		{"missing decision", "/api/submissions/" + sub.ID + "/review", map[string]string{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, teacher, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSubmissionVisibility(t *testing.T) {
	env := newEnv(t)
	sub, err := submission.Submit(env.db, submission.SubmitOpts{
		TaskID:  env.task.ID,
		UserID:  "u1",
		Content: models.SubmissionContent{TimelineNote: "Done"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tests := []struct {
		user string
		want int
	}{
		{"u1", http.StatusOK},
		{"u2", http.StatusOK},
		{"u3", http.StatusNotFound},
		{"t1", http.StatusOK},
	}
	for _, tt := range tests {
		w := env.do(t, http.MethodGet, "/api/submissions/"+sub.ID, signToken(t, testSecret, tt.user, ""), nil)
		if w.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.user, w.Code, tt.want)
		}
	}

	w := env.do(t, http.MethodGet, "/api/submissions", signToken(t, testSecret, "u2", ""), nil)
	var list []models.Submission
	decode(t, w, &list)
	if len(list) != 1 || list[0].ID != sub.ID {
		t.Errorf("u2 list = %+v, want the team submission", list)
	}

	w = env.do(t, http.MethodGet, "/api/submissions", signToken(t, testSecret, "u3", ""), nil)
	list = nil
	decode(t, w, &list)
	if len(list) != 0 {
		t.Errorf("u3 list has %d submissions, want 0", len(list))
	}
}

func TestNotifications_MarkRead(t *testing.T) {
	env := newEnv(t)
	teacher := signToken(t, testSecret, "t1", "")
	student := signToken(t, testSecret, "u3", "")

	w := env.do(t, http.MethodPost, "/api/announcements", teacher, announcementBody{Title: "Demo day", Body: "Friday at 10"})
	if w.Code != http.StatusCreated {
		t.Fatalf("announce status = %d, body = %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/notifications?unread=true", student, nil)
	var notes []models.Notification
	decode(t, w, &notes)
	if len(notes) != 1 {
		t.Fatalf("unread = %d, want 1", len(notes))
	}

	path := "/api/notifications/" + strconv.FormatUint(uint64(notes[0].ID), 10) + "/read"
	if w := env.do(t, http.MethodPost, path, signToken(t, testSecret, "u1", ""), nil); w.Code != http.StatusNotFound {
		t.Errorf("other user mark read status = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodPost, path, student, nil); w.Code != http.StatusNoContent {
		t.Errorf("mark read status = %d, want 204", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/notifications/abc/read", student, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/notifications/unread-count", student, nil)
	var count struct {
		Unread int64 `json:"unread"`
	}
	decode(t, w, &count)
	if count.Unread != 0 {
		t.Errorf("unread after mark = %d, want 0", count.Unread)
	}
}

func TestCurriculumRoutes(t *testing.T) {
	env := newEnv(t)
	teacher := signToken(t, testSecret, "t1", "")
	student := signToken(t, testSecret, "u3", "")

	if w := env.do(t, http.MethodPost, "/api/stages", student, map[string]any{"title": "Launch", "order": 3}); w.Code != http.StatusForbidden {
		t.Errorf("student create stage status = %d, want 403", w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/stages", teacher, map[string]any{"id": "launch", "title": "Launch", "order": 3})
	if w.Code != http.StatusCreated {
		t.Fatalf("create stage status = %d, body = %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/stages", student, nil)
	var stages []models.Stage
	decode(t, w, &stages)
	if len(stages) != 3 || stages[2].ID != "launch" {
		t.Errorf("stages = %+v, want launch last", stages)
	}

	if w := env.do(t, http.MethodDelete, "/api/tasks/missing", teacher, nil); w.Code != http.StatusNotFound {
		t.Errorf("delete missing task status = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/stages/launch/status", teacher, map[string]string{"status": "bogus"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", w.Code)
	}
}

func TestWriteErrors_ValidationVersusServerFault(t *testing.T) {
	env := newEnv(t)
	teacher := signToken(t, testSecret, "t1", "")

	w := env.do(t, http.MethodPost, "/api/tasks", teacher, map[string]any{"stageId": "ideation", "title": "Survey", "type": "group"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad task type status = %d, want 400", w.Code)
	}

	if err := env.db.Migrator().DropTable(&models.Announcement{}); err != nil {
		t.Fatalf("drop announcements: %v", err)
	}
	w = env.do(t, http.MethodPost, "/api/announcements", teacher, map[string]any{"title": "Demo day"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("failed write status = %d, want 500", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != "internal error" {
		t.Errorf("error = %q, want the cause hidden", body["error"])
	}
}

func TestTeamRequestFlow(t *testing.T) {
	env := newEnv(t)
	teacher := signToken(t, testSecret, "t1", "")
	student := signToken(t, testSecret, "u3", "")

	w := env.do(t, http.MethodPost, "/api/team-requests", student, map[string]any{"companyName": "Cub Coffee"})
	if w.Code != http.StatusCreated {
		t.Fatalf("request status = %d, body = %s", w.Code, w.Body.String())
	}
	var req models.TeamRequest
	decode(t, w, &req)

	w = env.do(t, http.MethodPost, "/api/team-requests/"+req.ID+"/approve", teacher, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body = %s", w.Code, w.Body.String())
	}
	var team models.Team
	decode(t, w, &team)

	w = env.do(t, http.MethodGet, "/api/teams/"+team.ID+"/stages", student, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("team stages status = %d", w.Code)
	}
	var ts []models.TeamStage
	decode(t, w, &ts)
	if len(ts) != 2 || ts[0].Status != models.StageActive {
		t.Errorf("team stages = %+v, want first active", ts)
	}

	if w := env.do(t, http.MethodGet, "/api/teams/"+team.ID+"/stages", signToken(t, testSecret, "u1", ""), nil); w.Code != http.StatusForbidden {
		t.Errorf("outsider team stages status = %d, want 403", w.Code)
	}
}

func TestLeaderboard(t *testing.T) {
	env := newEnv(t)
	w := env.do(t, http.MethodGet, "/api/leaderboard", signToken(t, testSecret, "u3", ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var rows []map[string]any
	decode(t, w, &rows)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1 team", len(rows))
	}
}
