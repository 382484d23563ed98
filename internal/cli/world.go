package cli

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/stepper/internal/address"
	"github.com/roach88/stepper/internal/alloc"
	"github.com/roach88/stepper/internal/engine"
	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/program"
	"github.com/roach88/stepper/internal/store"
)

// world is an opened store with the engine and both programs registered.
type world struct {
	store    *store.Store
	engine   *engine.Engine
	registry *prometheus.Registry
	logger   *slog.Logger
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	o.Logger.Debug("opening database", "path", o.Config.Database)
	st, err := store.Open(o.Config.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openWorld opens the store and builds an engine over it.
func (o *RootOptions) openWorld() (*world, error) {
	st, err := o.openStore()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	eng := engine.New(st,
		engine.WithMaxDepth(o.Config.MaxInvokeDepth),
		engine.WithLogger(o.Logger),
		engine.WithMetrics(engine.NewMetrics(reg)),
	)
	alloc.Register(eng)
	program.Register(eng, program.New())

	return &world{store: st, engine: eng, registry: reg, logger: o.Logger}, nil
}

func (w *world) Close() {
	w.logMetrics()
	if err := w.store.Close(); err != nil {
		w.logger.Error("error closing database", "error", err)
	}
}

// logMetrics writes every non-zero series at Debug.
func (w *world) logMetrics() {
	families, err := w.registry.Gather()
	if err != nil {
		w.logger.Debug("gather metrics", "error", err)
		return
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			attrs := []any{"metric", fam.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				if m.GetCounter().GetValue() == 0 {
					continue
				}
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				if m.GetHistogram().GetSampleCount() == 0 {
					continue
				}
				attrs = append(attrs, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			default:
				continue
			}
			w.logger.Debug("metric", attrs...)
		}
	}
}

// identityKey resolves a named identity.
func identityKey(name string) (ir.Pubkey, error) {
	if name == "" {
		return ir.Pubkey{}, NewExitError(ExitCommandError, "identity name must not be empty")
	}
	return ir.PubkeyOf(ir.IdentityKey(name)), nil
}

// recordAddress is the identity's record address and bump.
func recordAddress(identity ir.Pubkey) (ir.Pubkey, uint8, error) {
	addr, bump, err := address.StateAddress(program.ID, identity)
	if err != nil {
		return ir.Pubkey{}, 0, fmt.Errorf("derive record address: %w", err)
	}
	return addr, bump, nil
}
