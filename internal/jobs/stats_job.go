package jobs

import (
	"time"

	"go.uber.org/zap"

	"rugbuster/internal/logger"
	"rugbuster/internal/services"
)

// StatsJob periodically snapshots platform totals into the stats table.
type StatsJob struct {
	adminService *services.AdminService
	stop         chan struct{}
	done         chan struct{}
}

// NewStatsJob creates a new StatsJob
func NewStatsJob(adminService *services.AdminService) *StatsJob {
	return &StatsJob{
		adminService: adminService,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start begins the periodic snapshot loop
func (j *StatsJob) Start(interval time.Duration) {
	go func() {
		defer close(j.done)

		// Run immediately on start
		if _, err := j.adminService.SnapshotPlatformStats(time.Now()); err != nil {
			logger.Warn("initial stats snapshot failed", zap.Error(err))
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := j.adminService.SnapshotPlatformStats(time.Now()); err != nil {
					logger.Warn("stats snapshot failed", zap.Error(err))
				}
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop ends the loop and waits for it to exit.
func (j *StatsJob) Stop() {
	close(j.stop)
	<-j.done
}
