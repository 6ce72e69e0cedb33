package rewards

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"

	"social/internal/notify"
)

var (
	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "social_reward_sweep_duration_seconds",
		Help:    "Duration of one full reward sweep.",
		Buckets: prometheus.DefBuckets,
	})
	creditedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "social_reward_credited_total",
		Help: "Total currency credited across all wallets.",
	})
)

func init() {
	prometheus.MustRegister(sweepDuration, creditedTotal)
}

// Sweeper runs the engine on a fixed interval and announces each
// completed round through the notifier.
type Sweeper struct {
	t        tomb.Tomb
	engine   *Engine
	notifier notify.Notifier
	interval time.Duration
	log      zerolog.Logger
}

func StartSweeper(engine *Engine, notifier notify.Notifier, interval time.Duration, log zerolog.Logger) *Sweeper {
	s := &Sweeper{engine: engine, notifier: notifier, interval: interval, log: log}
	s.t.Go(s.run)
	return s
}

func (s *Sweeper) run() error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.t.Dying():
			return nil
		case <-ticker.C:
			start := time.Now()
			credited, err := s.engine.SweepOnce()
			if err != nil {
				// only possible once the store is shut down
				s.log.Warn().Err(err).Msg("reward sweep skipped")
				continue
			}
			sweepDuration.Observe(time.Since(start).Seconds())
			creditedTotal.Add(credited)
			s.log.Debug().Float64("credited", credited).Msg("reward sweep done")
			s.notifier.OnRewardsUpdated()
		}
	}
}

// Stop halts the ticker and waits for a sweep in flight.
func (s *Sweeper) Stop() error {
	s.t.Kill(nil)
	return s.t.Wait()
}
