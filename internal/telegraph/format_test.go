package telegraph

import (
	"strings"
	"testing"
	"time"
)

func TestFormatReview_ApprovedWithPoints(t *testing.T) {
	e := FormatReview(ReviewEvent{
		CompanyName:   "Bear Bakery",
		TaskTitle:     "Customer survey",
		Decision:      "approved",
		PointsAwarded: 25000,
		StageTitle:    "Ideation",
		StageStatus:   "complete",
		Unlocked:      []string{"Prototype Lab", "Marketing"},
	})
	if e.Title != "Bear Bakery earned 25,000 Bear Bucks" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Body != "Approved: Customer survey" {
		t.Errorf("body = %q", e.Body)
	}
	if e.Severity != "success" || e.Color != ColorSuccess {
		t.Errorf("severity/color = %q/%q, want success/%s", e.Severity, e.Color, ColorSuccess)
	}
	if len(e.Fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(e.Fields))
	}
	if e.Fields[2].Value != "Prototype Lab, Marketing" {
		t.Errorf("unlocked field = %q", e.Fields[2].Value)
	}
}

func TestFormatReview_ApprovedBrandKit(t *testing.T) {
	e := FormatReview(ReviewEvent{
		CompanyName: "Solo Team",
		TaskTitle:   "Brand kit",
		Decision:    "approved",
	})
	if e.Title != "Solo Team: Brand kit approved" {
		t.Errorf("title = %q", e.Title)
	}
	if len(e.Fields) != 0 {
		t.Errorf("fields = %+v, want none", e.Fields)
	}
}

func TestFormatReview_NeedsChanges(t *testing.T) {
	e := FormatReview(ReviewEvent{
		TaskTitle: "Pitch deck",
		Decision:  "needs_changes",
	})
	if e.Title != "A student: Pitch deck needs changes" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Body != "" {
		t.Errorf("body = %q, want empty", e.Body)
	}
	if e.Color != ColorWarning {
		t.Errorf("color = %q, want %q", e.Color, ColorWarning)
	}
}

func TestFormatDigest(t *testing.T) {
	now := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	e := FormatDigest(now, []Standing{
		{Rank: 1, CompanyName: "Bear Bakery", Valuation: 125000},
		{Rank: 2, CompanyName: "Cub Couture", Valuation: 900},
	})
	if e == nil {
		t.Fatal("expected digest event")
	}
	if e.Title != "Company valuations, week of Oct 12" {
		t.Errorf("title = %q", e.Title)
	}
	want := "1. Bear Bakery: 125,000\n2. Cub Couture: 900"
	if e.Body != want {
		t.Errorf("body = %q, want %q", e.Body, want)
	}
}

func TestFormatDigest_Empty(t *testing.T) {
	if e := FormatDigest(time.Now(), nil); e != nil {
		t.Errorf("expected nil for no standings, got %+v", e)
	}
}

func TestFormatSideHustle(t *testing.T) {
	end := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)
	e := FormatSideHustle("Bake sale", 5000, end)
	if !strings.HasPrefix(e.Title, "Side hustle open: ") {
		t.Errorf("title = %q", e.Title)
	}
	if e.Fields[0].Value != "5,000 Bear Bucks" {
		t.Errorf("reward = %q", e.Fields[0].Value)
	}
	if e.Fields[1].Value != "Fri Oct 16 15:00" {
		t.Errorf("closes = %q", e.Fields[1].Value)
	}
}

func TestSeverityColor(t *testing.T) {
	tests := map[string]string{
		"success": ColorSuccess,
		"info":    ColorInfo,
		"warning": ColorWarning,
		"error":   ColorError,
		"":        ColorInfo,
	}
	for sev, want := range tests {
		if got := severityColor(sev); got != want {
			t.Errorf("severityColor(%q) = %q, want %q", sev, got, want)
		}
	}
}

func TestBucks(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{25000, "25,000"},
		{1234567, "1,234,567"},
		{-5000, "-5,000"},
	}
	for _, tt := range tests {
		if got := Bucks(tt.in); got != tt.want {
			t.Errorf("Bucks(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
