package jobs

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/gavelclass/interact-server-go/internal/database"
	"github.com/gavelclass/interact-server-go/internal/repository"
	"github.com/gavelclass/interact-server-go/internal/service"
)

// TimerSweepJob reclaims abandoned floors: an open timer whose duration
// elapsed more than the grace period ago is closed and its speaker marked
// done, then the session's observers get a fresh snapshot.
type TimerSweepJob struct {
	db        database.TxRunner
	timerRepo repository.SpeechTimerRepository
	handRepo  repository.HandRaiseRepository
	snapshots service.SnapshotPublisher
	interval  time.Duration
	grace     time.Duration
	done      chan struct{}
}

func NewTimerSweepJob(
	db database.TxRunner,
	timerRepo repository.SpeechTimerRepository,
	handRepo repository.HandRaiseRepository,
	snapshots service.SnapshotPublisher,
	interval time.Duration,
	grace time.Duration,
) *TimerSweepJob {
	return &TimerSweepJob{
		db:        db,
		timerRepo: timerRepo,
		handRepo:  handRepo,
		snapshots: snapshots,
		interval:  interval,
		grace:     grace,
		done:      make(chan struct{}),
	}
}

func (j *TimerSweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("grace", j.grace).Msg("timer sweep job started")
}

func (j *TimerSweepJob) Stop() {
	close(j.done)
	log.Info().Msg("timer sweep job stopped")
}

func (j *TimerSweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *TimerSweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	overdue, err := j.timerRepo.ListOverdue(ctx, j.grace)
	if err != nil {
		log.Error().Err(err).Msg("failed to list overdue timers")
		return
	}

	swept := make(map[int64]bool)
	for _, timer := range overdue {
		err := j.db.WithTx(ctx, func(tx *sqlx.Tx) error {
			if err := j.timerRepo.WithTx(tx).CloseByID(ctx, timer.ID); err != nil {
				return err
			}
			return j.handRepo.WithTx(tx).MarkDoneSpeaking(ctx, timer.ClassSessionID, timer.UserID)
		})
		if err != nil {
			log.Error().
				Err(err).
				Int64("timerId", timer.ID).
				Msg("failed to sweep overdue timer")
			continue
		}
		swept[timer.ClassSessionID] = true
	}

	if len(swept) > 0 {
		log.Info().Int("timers", len(overdue)).Int("sessions", len(swept)).Msg("swept overdue timers")
	}

	for sessionID := range swept {
		if j.snapshots != nil {
			j.snapshots.PublishSnapshot(ctx, sessionID)
		}
	}
}
