// Package engine implements C13 (spec.md §5): the single-goroutine cycle
// that reads a consistent NB/SB snapshot, runs C2..C12 in the fixed order
// spec.md names, and applies the resulting model.Plan in one transaction
// per database. Every reconciliation step it calls is a pure function of
// a snapshot and a cache; this package only owns the sequencing, the
// process-wide allocator state spec.md §5 calls out as legitimately
// long-lived (the MAC pool; the MAC prefix is re-read from NB every pass),
// and the select loop over
// its three change sources.
package engine

import (
	"context"
	"maps"
	"time"

	"github.com/ovnxlate/ovnxlate/internal/config"
	"github.com/ovnxlate/ovnxlate/internal/control"
	"github.com/ovnxlate/ovnxlate/internal/differ"
	"github.com/ovnxlate/ovnxlate/internal/election"
	"github.com/ovnxlate/ovnxlate/internal/flow"
	"github.com/ovnxlate/ovnxlate/internal/idalloc"
	"github.com/ovnxlate/ovnxlate/internal/model"
	"github.com/ovnxlate/ovnxlate/internal/ovsdb"
	"github.com/ovnxlate/ovnxlate/internal/pipeline"
	"github.com/ovnxlate/ovnxlate/internal/rbac"
	"github.com/ovnxlate/ovnxlate/internal/reconcile"
	syncpkg "github.com/ovnxlate/ovnxlate/internal/sync"
	"github.com/ovnxlate/ovnxlate/internal/xlog"
)

// Engine owns every piece of state spec.md §5 says outlives a single
// reconciliation pass: the database connection, the leader-election
// controller, the control socket, and the MAC pool.
type Engine struct {
	cfg     config.Config
	db      *ovsdb.Client
	pauser  *election.Controller
	ctl     *control.Server
	macPool *idalloc.MACPool
}

// New wires an Engine from an already-dialed database connection, a
// leader-election controller, and an already-listening control socket.
// The pauser is constructed by the caller and shared with the control
// socket's own Server (control.NewServer takes the same *Controller), so
// "pause"/"resume" issued over the socket are visible here immediately.
func New(cfg config.Config, db *ovsdb.Client, pauser *election.Controller, ctl *control.Server) *Engine {
	return &Engine{
		cfg:     cfg,
		db:      db,
		pauser:  pauser,
		ctl:     ctl,
		macPool: idalloc.NewMACPool(),
	}
}

// Run drives the reconciliation loop until ctx is canceled or the control
// socket receives "exit" (spec.md §5 "drain change notifications;  if
// both connections are ready, open NB-read and SB-write transactions").
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.ctl.ExitRequested:
			return nil
		case <-ticker.C:
			e.pauser.Poll()
			if err := e.runOnce(ctx, e.pauser.CanWrite()); err != nil {
				xlog.Warnf("reconcile-cycle", nil, "reconciliation cycle failed: %v", err)
			}
		}
	}
}

// runOnce is one full pass of C2..C13 against a fresh snapshot. The plan is
// applied only when write is true; a standby or paused engine still reads
// and reconciles, which keeps its MAC pool tracking both databases.
func (e *Engine) runOnce(ctx context.Context, write bool) error {
	snap, err := e.db.ReadSnapshot(ctx)
	if err != nil {
		return err
	}

	plan, err := Reconcile(snap, e.macPool, e.cfg.Multicast.Min, e.cfg.Multicast.Max)
	if err != nil {
		return err
	}
	if plan.Empty() || !write {
		return nil
	}
	return e.db.Apply(ctx, plan)
}

// Reconcile runs every reconciliation step spec.md §5 names, in order,
// against one snapshot, and returns the accumulated plan. It holds no
// state of its own beyond the MAC pool the caller threads through,
// so the whole cycle can be driven from a test with a hand-built
// model.Snapshot and no database at all.
func Reconcile(snap model.Snapshot, macPool *idalloc.MACPool, mcastMin, mcastMax int) (*model.Plan, error) {
	plan := &model.Plan{}

	macPrefix, generatedOptions, err := macPrefixFor(snap.NB.Global)
	if err != nil {
		return nil, err
	}

	cache := reconcile.Datapaths(snap.NB, snap.SB, plan)
	reconcile.Ports(snap.NB, snap.SB, cache, plan)
	reconcile.ApplyIPAM(cache, snap.NB, macPool, macPrefix, plan)
	reconcile.HAChassisGroups(snap.NB, snap.SB, cache, plan)
	reconcile.RouterGroups(cache)
	reconcile.RefChassis(cache, snap.SB, plan)

	mcGroups, igmpGroups := reconcile.Multicast(snap.NB, snap.SB, cache, mcastMin, mcastMax)

	set := flow.NewSet()
	pipeline.Generate(cache, set)

	differ.Flows(set, snap.SB.LogicalFlows, plan)
	differ.MulticastGroups(mcGroups, snap.SB.MulticastGroups, plan)
	differ.IGMPGroups(igmpGroups, snap.SB.IGMPGroups, plan)

	syncpkg.AddressSets(snap.NB, snap.SB, cache, plan)
	syncpkg.PortGroups(snap.NB, snap.SB, plan)
	syncpkg.Meters(snap.NB, snap.SB, plan)
	syncpkg.DNS(snap.NB, snap.SB, cache, plan)
	syncpkg.DHCPCatalogs(plan, snap.SB.DHCPOptions, snap.SB.DHCPv6Options)
	syncpkg.IPMulticastConfig(cache, snap.SB.IPMulticast, plan)

	rbac.Bootstrap(snap.SB, plan)

	mirrorGlobals(snap, generatedOptions, plan)

	return plan, nil
}

// macPrefixFor reads options:mac_prefix off the NB global row, or generates
// one on first run (spec.md §5, §6). When it generates a fresh prefix it
// also returns the options map it should be persisted under, so the single
// NB_Global update mirrorGlobals issues carries both concerns instead of
// two competing updates to the same row landing in one plan.
func macPrefixFor(global *model.NBGlobal) (prefix idalloc.MACPrefix, generatedOptions map[string]string, err error) {
	if global != nil {
		if raw, ok := global.Options[model.OptMACPrefix]; ok && raw != "" {
			prefix, err = idalloc.ParseMACPrefix(raw)
			return prefix, nil, err
		}
	}

	prefix, err = idalloc.GenerateMACPrefix()
	if err != nil {
		return idalloc.MACPrefix{}, nil, err
	}
	options := map[string]string{model.OptMACPrefix: prefix.String()}
	if global != nil {
		for k, v := range global.Options {
			options[k] = v
		}
	}
	return prefix, options, nil
}

// mirrorGlobals copies NB_Global's nb_cfg/ipsec/options into SB_Global, and
// stages NB_Global's sb_cfg/hv_cfg (and a freshly-generated mac_prefix, if
// any) from the committed SB state (spec.md §5 "copy the NB global row's
// nb_cfg into SB, ipsec flag, and options; on commit completion, update
// NB's sb_cfg from the committed SB sequence number and hv_cfg from the
// minimum chassis nb_cfg").
//
// hv_cfg tracks how far every chassis has caught up, not just the
// translator itself: a chassis that hasn't processed nb_cfg N yet holds
// the whole fleet's hv_cfg at or below N.
func mirrorGlobals(snap model.Snapshot, generatedOptions map[string]string, plan *model.Plan) {
	if snap.NB.Global == nil {
		return
	}

	if snap.SB.Global == nil {
		plan.Insert("SB_Global", &model.SBGlobal{
			NbCfg:       snap.NB.Global.NbCfg,
			Ipsec:       snap.NB.Global.Ipsec,
			Options:     snap.NB.Global.Options,
			ExternalIDs: snap.NB.Global.ExternalIDs,
		})
	} else if snap.SB.Global.NbCfg != snap.NB.Global.NbCfg ||
		snap.SB.Global.Ipsec != snap.NB.Global.Ipsec ||
		!maps.Equal(snap.SB.Global.Options, snap.NB.Global.Options) {
		plan.Update("SB_Global", snap.SB.Global.UUID, &model.SBGlobal{
			NbCfg:       snap.NB.Global.NbCfg,
			Ipsec:       snap.NB.Global.Ipsec,
			Options:     snap.NB.Global.Options,
			ExternalIDs: snap.SB.Global.ExternalIDs,
		})
	}

	hvCfg := snap.NB.Global.NbCfg
	for _, c := range snap.SB.Chassis {
		if c.NbCfg < hvCfg {
			hvCfg = c.NbCfg
		}
	}

	options := snap.NB.Global.Options
	optionsChanged := generatedOptions != nil
	if optionsChanged {
		options = generatedOptions
	}

	if optionsChanged || snap.NB.Global.SbCfg != snap.NB.Global.NbCfg || snap.NB.Global.HvCfg != hvCfg {
		plan.Update("NB_Global", snap.NB.Global.UUID, &model.NBGlobal{
			NbCfg:       snap.NB.Global.NbCfg,
			SbCfg:       snap.NB.Global.NbCfg,
			HvCfg:       hvCfg,
			Options:     options,
			Ipsec:       snap.NB.Global.Ipsec,
			ExternalIDs: snap.NB.Global.ExternalIDs,
		})
	}
}
