package bulletin

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/beartank/internal/ledger"
	"github.com/zulandar/beartank/internal/telegraph"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	DB          *gorm.DB
	Broadcast   *telegraph.Broadcaster // optional
	PublishCron string                 // due announcements and side hustles
	DigestCron  string                 // valuation leaderboard
	Now         func() time.Time       // defaults to time.Now
}

// Scheduler runs the bulletin jobs on cron schedules.
type Scheduler struct {
	db        *gorm.DB
	broadcast *telegraph.Broadcaster
	cron      *cron.Cron
	now       func() time.Time
}

// NewScheduler validates both schedules and registers the jobs.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("bulletin: db is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Scheduler{
		db:        opts.DB,
		broadcast: opts.Broadcast,
		cron:      cron.New(cron.WithParser(cronParser)),
		now:       now,
	}
	if _, err := s.cron.AddFunc(opts.PublishCron, s.runPublish); err != nil {
		return nil, fmt.Errorf("bulletin: publish schedule %q: %w", opts.PublishCron, err)
	}
	if _, err := s.cron.AddFunc(opts.DigestCron, s.runDigest); err != nil {
		return nil, fmt.Errorf("bulletin: digest schedule %q: %w", opts.DigestCron, err)
	}
	return s, nil
}

// Run starts the jobs and blocks until ctx is cancelled, then waits for a
// running job to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	log.Printf("bulletin: scheduler started (%d jobs)", len(s.cron.Entries()))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Printf("bulletin: scheduler stopped")
}

func (s *Scheduler) runPublish() {
	if _, _, err := s.PublishTick(context.Background()); err != nil {
		log.Printf("bulletin: publish: %v", err)
	}
}

func (s *Scheduler) runDigest() {
	if _, err := s.DigestTick(context.Background()); err != nil {
		log.Printf("bulletin: digest: %v", err)
	}
}

// PublishTick publishes due announcements and announces newly opened side
// hustles, mirroring both to the class channel. Returns how many of each.
func (s *Scheduler) PublishTick(ctx context.Context) (int, int, error) {
	now := s.now()
	published, err := PublishDue(s.db, now)
	for _, a := range published {
		s.publish(ctx, telegraph.FormatAnnouncement(a.Title, a.Body))
	}
	if err != nil {
		return len(published), 0, err
	}

	opened, err := AnnounceOpened(s.db, now)
	for _, t := range opened {
		s.publish(ctx, telegraph.FormatSideHustle(t.Title, t.Points, *t.EndAt))
	}
	if len(published)+len(opened) > 0 {
		log.Printf("bulletin: published %d announcements, %d side hustles", len(published), len(opened))
	}
	return len(published), len(opened), err
}

// DigestTick posts the valuation leaderboard to the class channel. Returns
// whether a digest was sent.
func (s *Scheduler) DigestTick(ctx context.Context) (bool, error) {
	if s.broadcast.Len() == 0 {
		return false, nil
	}
	board, err := ledger.Leaderboard(s.db)
	if err != nil {
		return false, err
	}
	standings := make([]telegraph.Standing, 0, len(board))
	for _, b := range board {
		standings = append(standings, telegraph.Standing{Rank: b.Rank, CompanyName: b.CompanyName, Valuation: b.Valuation})
	}
	evt := telegraph.FormatDigest(s.now(), standings)
	if evt == nil {
		return false, nil
	}
	return s.publish(ctx, *evt) > 0, nil
}

func (s *Scheduler) publish(ctx context.Context, evt telegraph.FormattedEvent) int {
	return s.broadcast.Publish(ctx, telegraph.OutboundMessage{Events: []telegraph.FormattedEvent{evt}})
}
