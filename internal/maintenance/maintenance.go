// Package maintenance schedules the recurring housekeeping jobs: data
// retention pruning and inactive account deactivation.
package maintenance

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of scheduled housekeeping. Jobs must be safe to re-run; the
// scheduler and the manual trigger endpoint can both invoke them.
type Job interface {
	// Name returns the unique name of the job
	Name() string
	// Run executes the job once
	Run(ctx context.Context) error
}

// ErrJobNotFound is returned when a manual run names an unknown job
var ErrJobNotFound = fmt.Errorf("job not found")

// Manager handles the scheduling and execution of maintenance jobs
type Manager struct {
	jobs      []Job
	schedules map[string]string
	cron      *cron.Cron
	log       *zap.SugaredLogger
}

// NewManager creates a new maintenance manager
func NewManager(log *zap.SugaredLogger) *Manager {
	// Create a new cron scheduler with seconds disabled
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))

	return &Manager{
		jobs:      make([]Job, 0),
		schedules: make(map[string]string),
		cron:      c,
		log:       log,
	}
}

// Register adds a job to the manager with its cron schedule
func (m *Manager) Register(job Job, schedule string) {
	m.jobs = append(m.jobs, job)
	m.schedules[job.Name()] = schedule
}

// GetJob returns a job by name
func (m *Manager) GetJob(name string) (Job, bool) {
	for _, j := range m.jobs {
		if j.Name() == name {
			return j, true
		}
	}
	return nil, false
}

// RunJob executes a specific job by name, outside its schedule
func (m *Manager) RunJob(ctx context.Context, name string) error {
	job, found := m.GetJob(name)
	if !found {
		return ErrJobNotFound
	}
	return job.Run(ctx)
}

// JobNames lists the registered job names
func (m *Manager) JobNames() []string {
	names := make([]string, 0, len(m.jobs))
	for _, j := range m.jobs {
		names = append(names, j.Name())
	}
	return names
}

// StartScheduler schedules all registered jobs and blocks until the context
// is cancelled.
func (m *Manager) StartScheduler(ctx context.Context) error {
	for _, j := range m.jobs {
		schedule := m.schedules[j.Name()]
		if schedule == "" {
			return fmt.Errorf("job %s has no schedule configured", j.Name())
		}

		job := j
		_, err := m.cron.AddFunc(schedule, func() {
			m.log.Infow("running scheduled job", "job", job.Name())
			if err := job.Run(ctx); err != nil {
				m.log.Errorw("scheduled job failed", "job", job.Name(), "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", j.Name(), err)
		}

		m.log.Infow("scheduled job", "job", j.Name(), "schedule", schedule)
	}

	m.cron.Start()
	m.log.Info("maintenance scheduler started")

	<-ctx.Done()
	m.log.Info("stopping maintenance scheduler")
	m.cron.Stop()

	return nil
}
