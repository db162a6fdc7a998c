package telegraph

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// ReviewEvent describes a reviewed submission for the class channel.
type ReviewEvent struct {
	CompanyName   string
	TaskTitle     string
	Decision      string // approved or needs_changes
	PointsAwarded int
	StageTitle    string
	StageStatus   string
	Unlocked      []string // titles of stages that just opened
}

// FormatReview formats a review decision for the class channel. Feedback
// text never leaves the inbox.
func FormatReview(e ReviewEvent) FormattedEvent {
	who := e.CompanyName
	if who == "" {
		who = "A student"
	}

	var evt FormattedEvent
	if e.Decision == "approved" {
		evt.Severity = "success"
		if e.PointsAwarded > 0 {
			evt.Title = fmt.Sprintf("%s earned %s Bear Bucks", who, Bucks(int64(e.PointsAwarded)))
		} else {
			evt.Title = fmt.Sprintf("%s: %s approved", who, e.TaskTitle)
		}
		evt.Body = fmt.Sprintf("Approved: %s", e.TaskTitle)
	} else {
		evt.Severity = "warning"
		evt.Title = fmt.Sprintf("%s: %s needs changes", who, e.TaskTitle)
	}

	if e.StageTitle != "" {
		evt.Fields = append(evt.Fields, Field{Name: "Stage", Value: e.StageTitle, Short: true})
	}
	if e.StageStatus != "" {
		evt.Fields = append(evt.Fields, Field{Name: "Status", Value: e.StageStatus, Short: true})
	}
	if len(e.Unlocked) > 0 {
		evt.Fields = append(evt.Fields, Field{Name: "Unlocked", Value: strings.Join(e.Unlocked, ", ")})
	}
	evt.Color = severityColor(evt.Severity)
	return evt
}

// Standing is one leaderboard row for the digest.
type Standing struct {
	Rank        int
	CompanyName string
	Valuation   int64
}

// FormatDigest formats the weekly valuation leaderboard. Returns nil when
// there are no teams.
func FormatDigest(now time.Time, standings []Standing) *FormattedEvent {
	if len(standings) == 0 {
		return nil
	}
	var lines []string
	for _, s := range standings {
		lines = append(lines, fmt.Sprintf("%d. %s: %s", s.Rank, s.CompanyName, Bucks(s.Valuation)))
	}
	return &FormattedEvent{
		Title:    fmt.Sprintf("Company valuations, week of %s", now.Format("Jan 2")),
		Body:     strings.Join(lines, "\n"),
		Severity: "info",
		Color:    ColorInfo,
	}
}

// FormatAnnouncement formats a published announcement.
func FormatAnnouncement(title, body string) FormattedEvent {
	return FormattedEvent{
		Title:    title,
		Body:     body,
		Severity: "info",
		Color:    ColorInfo,
	}
}

// FormatSideHustle formats a side hustle that just opened.
func FormatSideHustle(title string, points int, endAt time.Time) FormattedEvent {
	return FormattedEvent{
		Title:    fmt.Sprintf("Side hustle open: %s", title),
		Severity: "success",
		Color:    ColorSuccess,
		Fields: []Field{
			{Name: "Reward", Value: Bucks(int64(points)) + " Bear Bucks", Short: true},
			{Name: "Closes", Value: endAt.Format("Mon Jan 2 15:04"), Short: true},
		},
	}
}

// Bucks renders an amount with thousands separators.
func Bucks(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
