// Package jobs runs the periodic housekeeping the store needs.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TokenPurger drops refresh tokens that are expired or revoked.
type TokenPurger interface {
	PurgeRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Janitor struct {
	cron  *cron.Cron
	store TokenPurger
	log   zerolog.Logger
}

func NewJanitor(store TokenPurger, log zerolog.Logger) *Janitor {
	return &Janitor{
		cron:  cron.New(cron.WithSeconds()),
		store: store,
		log:   log,
	}
}

func (j *Janitor) Start() error {
	// nightly, just past midnight
	if _, err := j.cron.AddFunc("0 5 0 * * *", j.purgeTokens); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		j.log.Warn().Msg("janitor jobs still running at shutdown")
	}
}

func (j *Janitor) purgeTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := j.store.PurgeRefreshTokens(ctx, time.Now())
	if err != nil {
		j.log.Error().Err(err).Msg("refresh token purge failed")
		return
	}
	j.log.Info().Int64("purged", n).Msg("refresh token purge done")
}
