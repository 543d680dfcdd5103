/*
The redialer package implements the retry policy the connection itself
deliberately does not have: every connection error is terminal for that
attempt, so a session that wants to stay online wraps its connection in a
Redialer. A clean disconnect stops the redialer, since that is the caller
saying goodbye on purpose.
*/
package redialer

import (
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"gopkg.in/tomb.v2"

	"github.com/eshack94/Textual/connection"
	"github.com/eshack94/Textual/logger"
)

const defaultStableAfter = 30 * time.Second

type Redialer struct {
	tmb    tomb.Tomb
	logger *logger.Logger

	conn connection.Connection

	params *backoff.ExponentialBackOff

	// How long a reopened connection must survive before the backoff resets
	stableAfter time.Duration
}

func New(log *logger.Logger, conn connection.Connection) *Redialer {
	params := backoff.NewExponentialBackOff()
	params.MaxElapsedTime = 72 * time.Hour
	params.MaxInterval = 15 * time.Minute

	return &Redialer{
		logger:      log.GetComponentLogger("Redialer"),
		conn:        conn,
		params:      params,
		stableAfter: defaultStableAfter,
	}
}

// WithBackOff overrides the default backoff parameters; mainly for tests and
// callers with unusual patience.
func (r *Redialer) WithBackOff(params *backoff.ExponentialBackOff, stableAfter time.Duration) *Redialer {
	r.params = params
	r.stableAfter = stableAfter
	return r
}

// Start opens the connection and keeps reopening it after error disconnects
// until it disconnects cleanly, the backoff gives up, or Stop is called.
func (r *Redialer) Start() {
	r.tmb.Go(r.run)
}

func (r *Redialer) Stop() {
	if r.tmb.Alive() {
		r.tmb.Kill(nil)
		r.tmb.Wait()
	}
}

func (r *Redialer) Done() <-chan struct{} {
	return r.tmb.Dead()
}

func (r *Redialer) Err() error {
	return r.tmb.Err()
}

func (r *Redialer) run() error {
	r.params.Reset()
	r.conn.Open()

	for {
		stableTimer := time.NewTimer(r.stableAfter)

		select {
		case <-r.tmb.Dying():
			stableTimer.Stop()
			return nil

		case <-stableTimer.C:
			// The connection held; treat the next failure as a fresh outage
			r.params.Reset()
			select {
			case <-r.tmb.Dying():
				return nil
			case <-r.conn.Done():
			}

		case <-r.conn.Done():
			stableTimer.Stop()
		}

		if err := r.conn.Err(); err == nil {
			r.logger.Infof("Connection closed cleanly; not redialing")
			return nil
		} else {
			r.logger.Errorf("Connection lost: %s", err)
		}

		next := r.params.NextBackOff()
		if next == backoff.Stop {
			return fmt.Errorf("giving up after %s of failed redials", r.params.MaxElapsedTime)
		}

		r.logger.Infof("Redialing in %s", next.Round(time.Millisecond))
		select {
		case <-r.tmb.Dying():
			return nil
		case <-time.After(next):
		}

		r.conn.Open()
	}
}
