package jobs

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"FinReportsSaas/internal/config"
	"FinReportsSaas/internal/logger"
	"FinReportsSaas/internal/serviceiface"
	"FinReportsSaas/internal/uploadcache"
)

type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
	cache  uploadcache.Store
	crons  []*cron.Cron
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool, cache uploadcache.Store) serviceiface.Service {
	return &CronService{
		config: cfg,
		db:     db,
		cache:  cache,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	snapConfig := NewDefaultSnapshotConfig()
	if s.config != nil {
		if schedule, ok := s.config["snapshot_schedule"].(string); ok && schedule != "" {
			snapConfig.Schedule = schedule
		}
		if tz, ok := s.config["timezone"].(string); ok && tz != "" {
			snapConfig.TimeZone = tz
		}
		if batchSize, ok := s.config["snapshot_batch_size"].(int); ok && batchSize > 0 {
			snapConfig.BatchSize = batchSize
		}
	}

	c, err := RunSnapshotScheduler(snapConfig, s.db)
	if err != nil {
		return fmt.Errorf("failed to start snapshot scheduler: %v", err)
	}
	s.crons = append(s.crons, c)
	logger.GlobalLogger.LogAudit("Metric snapshot job scheduled")
	log.Println("Cron service started — Metric Snapshots scheduled")

	sweepSchedule := config.DefaultCacheSweepSchedule
	if s.config != nil {
		if schedule, ok := s.config["cache_sweep_schedule"].(string); ok && schedule != "" {
			sweepSchedule = schedule
		}
	}
	c, err = RunCacheSweeper(sweepSchedule, s.cache)
	if err != nil {
		return fmt.Errorf("failed to start cache sweeper: %v", err)
	}
	s.crons = append(s.crons, c)
	logger.GlobalLogger.LogAudit("Upload cache sweeper scheduled")
	log.Println("Cron service started — Cache Sweeper scheduled")

	return nil
}

func (s *CronService) Stop() error {
	for _, c := range s.crons {
		c.Stop()
	}
	log.Println("Cron service stopped")
	return nil
}

// RunCacheSweeper evicts expired upload previews on a fixed schedule so
// abandoned uploads do not pin file bytes in memory for longer than the TTL.
func RunCacheSweeper(schedule string, cache uploadcache.Store) (*cron.Cron, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache sweeper requires a cache")
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if removed := cache.CleanupExpired(); removed > 0 {
			logger.GlobalLogger.LogAudit(fmt.Sprintf("Upload cache sweep removed %d expired previews", removed))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cache sweeper: %v", err)
	}
	c.Start()
	return c, nil
}

// RetryWithBackoff executes a function with exponential backoff retry logic
func RetryWithBackoff(maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			logger.GlobalLogger.LogAudit(fmt.Sprintf("Retrying after %v (attempt %d/%d)", delay, attempt, maxRetries))
			time.Sleep(delay)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		logger.GlobalLogger.LogAudit(fmt.Sprintf("Attempt %d failed: %v", attempt+1, lastErr))
	}

	return fmt.Errorf("failed after %d attempts: %v", maxRetries+1, lastErr)
}
