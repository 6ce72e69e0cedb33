package blob

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"

	"social/internal/models"
	"social/internal/store"
)

var persistFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "social_persist_failures_total",
	Help: "Failed snapshot saves; each one is retried on the next tick.",
})

func init() {
	prometheus.MustRegister(persistFailures)
}

// LoadInto restores both snapshots into the store. Missing blobs leave
// the store empty, so first boot needs no special casing.
func LoadInto(d *DB, st *store.Store) error {
	var users models.UsersSnapshot
	var posts models.PostsSnapshot
	if data, err := d.Load(UsersBlob); err != nil {
		return err
	} else if data != nil {
		if err := json.Unmarshal(data, &users); err != nil {
			return err
		}
	}
	if data, err := d.Load(PostsBlob); err != nil {
		return err
	} else if data != nil {
		if err := json.Unmarshal(data, &posts); err != nil {
			return err
		}
	}
	st.Load(users, posts)
	return nil
}

// Persister flushes dirty state on a fixed interval and performs one
// final flush at shutdown.
type Persister struct {
	t        tomb.Tomb
	db       *DB
	store    *store.Store
	interval time.Duration
	log      zerolog.Logger
}

func StartPersister(d *DB, st *store.Store, interval time.Duration, log zerolog.Logger) *Persister {
	p := &Persister{db: d, store: st, interval: interval, log: log}
	p.t.Go(p.run)
	return p
}

func (p *Persister) run() error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.t.Dying():
			p.flush()
			return nil
		case <-ticker.C:
			p.flush()
		}
	}
}

// flush clears the dirty flag before snapshotting: a mutation racing
// the save re-arms it, costing at worst one extra save.
func (p *Persister) flush() {
	if !p.store.Dirty() {
		return
	}
	p.store.ClearDirty()
	err := p.store.Snapshot(func(users models.UsersSnapshot, posts models.PostsSnapshot) error {
		ub, err := json.Marshal(users)
		if err != nil {
			return err
		}
		pb, err := json.Marshal(posts)
		if err != nil {
			return err
		}
		if err := p.db.Save(UsersBlob, ub); err != nil {
			return err
		}
		return p.db.Save(PostsBlob, pb)
	})
	if err != nil {
		p.store.MarkDirty()
		persistFailures.Inc()
		p.log.Error().Err(fmt.Errorf("%w: %v", store.ErrPersistenceFailed, err)).Msg("snapshot save failed, will retry")
		return
	}
	p.log.Debug().Msg("snapshots persisted")
}

// Stop triggers the final flush and waits for it.
func (p *Persister) Stop() error {
	p.t.Kill(nil)
	return p.t.Wait()
}
