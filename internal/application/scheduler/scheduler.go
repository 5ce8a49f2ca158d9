// Package scheduler runs proactive agents on their catalog cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/application/agents"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

const runTimeout = 5 * time.Minute

// AgentRunner executes an agent pipeline.
type AgentRunner interface {
	Run(ctx context.Context, agentID string, req agents.Request) (*execution.Record, error)
}

// Job is a registered scheduled run.
type Job struct {
	AgentID  string
	Schedule string
	Task     string
	entry    cron.EntryID
}

// Scheduler manages cron jobs for scheduled agent runs.
type Scheduler struct {
	cron   *cron.Cron
	runner AgentRunner
	logger zerolog.Logger

	mu   sync.Mutex
	jobs []Job
	ctx  context.Context
	stop context.CancelFunc
}

// New registers a job for every descriptor with a schedule. Overlapping runs
// of the same job are skipped.
func New(runner AgentRunner, descriptors []agents.Descriptor, logger zerolog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner: runner,
		logger: logger.With().Str("service", "scheduler").Logger(),
		ctx:    ctx,
		stop:   cancel,
	}
	for _, d := range descriptors {
		if d.Schedule == "" {
			continue
		}
		if err := s.add(d); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(d agents.Descriptor) error {
	task := d.ScheduledTask
	if task == "" {
		task = "Scheduled review: " + d.Description
	}
	job := Job{AgentID: d.ID, Schedule: d.Schedule, Task: task}
	id, err := s.cron.AddFunc(d.Schedule, func() { s.RunNow(job) })
	if err != nil {
		return fmt.Errorf("schedule agent %s (%q): %w", d.ID, d.Schedule, err)
	}
	job.entry = id
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	return nil
}

// Jobs lists the registered jobs.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

// Next returns the next activation time of agentID's job.
func (s *Scheduler) Next(agentID string) (time.Time, bool) {
	for _, j := range s.Jobs() {
		if j.AgentID == agentID {
			return s.cron.Entry(j.entry).Next, true
		}
	}
	return time.Time{}, false
}

// RunNow executes job synchronously. Errors are logged.
func (s *Scheduler) RunNow(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	log := s.logger.With().Str("agent_type", job.AgentID).Logger()
	log.Info().Msg("scheduled agent run started")
	rec, err := s.runner.Run(ctx, job.AgentID, agents.Request{
		Task:       job.Task,
		Context:    map[string]any{"trigger": "schedule", "schedule": job.Schedule},
		Parameters: map[string]any{},
		User:       "scheduler",
	})
	if err != nil {
		log.Error().Err(err).Msg("scheduled agent run failed")
		return
	}
	log.Info().
		Str("execution_id", rec.ExecutionID).
		Bool("success", rec.Success).
		Msg("scheduled agent run finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.stop()
	ctx := s.cron.Stop()
	<-ctx.Done()
}
