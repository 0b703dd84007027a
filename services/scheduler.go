package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

// DefaultPresenceInterval is how often the bot's status text is refreshed.
const DefaultPresenceInterval = 15 * time.Second

// PresenceSetter changes the bot's visible status text.
type PresenceSetter func(status string) error

// BackupUploader stores a copy of the state document off-site.
type BackupUploader interface {
	UploadBackup(ctx context.Context, doc []byte) (key string, err error)
}

// Scheduler runs the bot's periodic jobs.
type Scheduler struct {
	sched gocron.Scheduler
	log   *zap.SugaredLogger
}

func NewScheduler(log *zap.SugaredLogger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{sched: sched, log: log}, nil
}

// PresenceStatus is the status text: host memory usage.
func PresenceStatus(ctx context.Context) (string, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RAM: %.1f%%", vm.UsedPercent), nil
}

// AddPresenceJob refreshes the status every interval.
func (s *Scheduler) AddPresenceJob(interval time.Duration, set PresenceSetter) error {
	if interval <= 0 {
		interval = DefaultPresenceInterval
	}
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			status, err := PresenceStatus(ctx)
			if err != nil {
				s.log.Warnw("[Scheduler] memory stats unavailable", "error", err)
				return
			}
			if err := set(status); err != nil {
				s.log.Warnw("[Scheduler] presence update failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// AddBackupJob uploads the state document every interval.
func (s *Scheduler) AddBackupJob(interval time.Duration, repo *GuildStateRepository, uploader BackupUploader) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			doc, err := repo.Export()
			if err != nil {
				s.log.Errorw("[BACKUP] encode failed", "error", err)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			key, err := uploader.UploadBackup(ctx, doc)
			if err != nil {
				s.log.Warnw("[BACKUP] ⚠️ upload failed", "error", err)
				return
			}
			s.log.Infow("[BACKUP] ✅ uploaded", "key", key, "bytes", len(doc))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.log.Infow("[Scheduler] started", "jobs", len(s.sched.Jobs()))
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
