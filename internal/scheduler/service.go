package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"narration-video-gen/internal/logging"
)

// Service runs jobs on cron schedules (six fields, seconds first). A job
// that is still running when its next tick fires is skipped.
type Service struct {
	log  *logging.Logger
	cron *cron.Cron
}

func NewService(log *logging.Logger) *Service {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})),
	)
	return &Service{log: log, cron: c}
}

// Add registers job under schedule. name only appears in logs.
func (s *Service) Add(schedule, name string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Infof("cron: %s", name)
		switch err := job(context.Background()); {
		case errors.Is(err, ErrPublish):
			s.log.Warnf("cron %s: %v", name, err)
		case err != nil:
			s.log.Errorf("cron %s: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, schedule, err)
	}
	return nil
}

// Entries is the number of registered jobs.
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.Infof("scheduler: started with %d jobs", s.Entries())

	<-ctx.Done()

	ctxStop := s.cron.Stop()
	select {
	case <-ctxStop.Done():
		return nil
	case <-time.After(10 * time.Minute):
		// A render in progress is allowed to finish.
		return errors.New("cron stop timeout")
	}
}

// cronLogger routes robfig/cron's own messages to our logger.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infof("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
