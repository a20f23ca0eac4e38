package scheduler

import (
	"time"

	"github.com/billfold/bill-service/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the periodic pattern sweep. Detection results are
// logged for operational visibility; forecast requests always recompute
// from the live snapshot.
type Scheduler struct {
	cron *cron.Cron
	svc  *service.Service
	log  *logrus.Logger
}

// NewScheduler initializes a scheduler around the given service
func NewScheduler(svc *service.Service, log *logrus.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), svc: svc, log: log}
}

// Start registers the pattern sweep at the given cron spec and begins
// running
func (s *Scheduler) Start(sweepSpec string) error {
	if _, err := s.cron.AddFunc(sweepSpec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infof("Pattern sweep scheduled: %s", sweepSpec)
	return nil
}

// Stop halts the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) sweep() {
	detected, err := s.svc.PatternSweep(time.Now().UTC())
	if err != nil {
		s.log.Errorf("Pattern sweep failed: %v", err)
		return
	}
	s.log.Infof("Pattern sweep complete: %d recurring series detected", len(detected))
}
