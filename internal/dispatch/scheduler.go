package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/arendabot/arendabot/internal/config"
	"github.com/arendabot/arendabot/internal/event"
	"github.com/arendabot/arendabot/internal/model"
)

// SubscriberSource lists the chats the scheduler fans updates out to.
// *repository.SubscriberRepository satisfies it.
type SubscriberSource interface {
	Active(ctx context.Context) ([]model.Subscriber, error)
}

// Scheduler periodically emits one tick event per active subscriber through
// the dispatcher and delivers non-empty replies. Sends are rate-limited to
// one per second so a large subscriber list cannot flood the transport.
type Scheduler struct {
	cfg        config.SchedulerConfig
	dispatcher *Dispatcher
	subs       SubscriberSource
	respond    event.Responder
	limiter    *rate.Limiter
	cron       *cron.Cron
	log        zerolog.Logger

	ctx context.Context
}

// NewScheduler returns a stopped Scheduler; call Start to begin ticking.
func NewScheduler(cfg config.SchedulerConfig, d *Dispatcher, subs SubscriberSource, respond event.Responder, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		dispatcher: d,
		subs:       subs,
		respond:    respond,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		cron:       cron.New(),
		log:        log,
		ctx:        context.Background(),
	}
}

// Start schedules the recurring run and a shortly-delayed first run. The
// given ctx bounds all scheduled work; cancel it before calling Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info().Msg("scheduler disabled")
		return nil
	}
	s.ctx = ctx
	if _, err := s.cron.AddFunc("@every "+s.cfg.Interval.String(), s.runScheduled); err != nil {
		return fmt.Errorf("scheduler: add job: %w", err)
	}
	go func() {
		select {
		case <-time.After(s.cfg.InitialDelay):
			s.runScheduled()
		case <-ctx.Done():
		}
	}()
	s.cron.Start()
	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Dur("initial_delay", s.cfg.InitialDelay).
		Msg("scheduler started")
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runScheduled() {
	ctx := s.ctx
	if ctx.Err() != nil {
		return
	}
	subs, err := s.subs.Active(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("could not list subscribers")
		return
	}
	for _, sub := range subs {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		ev := model.Event{
			ID:         uuid.NewString(),
			Kind:       model.EventTick,
			ChatID:     sub.ChatID,
			Username:   sub.Username,
			ReceivedAt: time.Now().UTC(),
		}
		out := s.dispatcher.Dispatch(ctx, ev)
		if out.Reply == "" {
			// The tick handler had nothing to send this round.
			continue
		}
		if err := s.respond.Respond(ctx, sub.ChatID, out.Reply); err != nil {
			s.log.Warn().Err(err).Int64("chat_id", sub.ChatID).Msg("could not deliver update")
		}
	}
}
