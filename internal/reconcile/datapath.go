// Package reconcile implements C2..C6 of spec.md §4: joining northbound
// desired state with southbound observed state, allocating stable tunnel
// keys, synthesizing HA-chassis groups, and folding per-datapath multicast
// state. Every function here is a pure transform over a model.Snapshot,
// kept that way deliberately (spec.md §9 "Avoid async where not needed")
// so the whole package is testable without an event loop.
package reconcile

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ovnxlate/ovnxlate/internal/idalloc"
	"github.com/ovnxlate/ovnxlate/internal/model"
	"github.com/ovnxlate/ovnxlate/internal/xlog"
)

// Datapaths implements C2: a three-way join of NB switches/enabled routers
// against SB Datapath_Binding rows keyed by external_ids, allocating a
// tunnel key for every nb-only row and deleting every malformed or
// duplicate-keyed sb-only row.
func Datapaths(nb model.NorthboundSnapshot, sb model.SouthboundSnapshot, plan *model.Plan) *model.Cache {
	cache := model.NewCache()
	alloc := idalloc.NewTunnelKeyAllocator(idalloc.DatapathKeyMin, idalloc.DatapathKeyMax)

	// Index SB rows by their NB identity key, detecting duplicates and
	// rows missing a proper key along the way (spec.md §4.2).
	sbByIdentity := make(map[string]*model.DatapathBinding)
	for _, db := range sb.Datapaths {
		key, ok := datapathIdentity(db)
		if !ok {
			plan.Delete("Datapath_Binding", db.UUID, "missing logical-switch/logical-router external-id")
			continue
		}
		if _, dup := sbByIdentity[key]; dup {
			xlog.Warnf("datapath:duplicate-key", logrus.Fields{"key": key}, "duplicate SB datapath binding for %s", key)
			// Keep the first, delete the duplicate (spec.md §7 "Duplicate identity").
			plan.Delete("Datapath_Binding", db.UUID, "duplicate external-id key")
			continue
		}
		sbByIdentity[key] = db
		cache.DatapathTunnelKeys[db.TunnelKey] = true
	}

	seenIdentity := make(map[string]bool)
	hint := 0

	for _, ls := range nb.Switches {
		if seenIdentity[ls.UUID] {
			xlog.Warnf("datapath:duplicate-nb-uuid", logrus.Fields{"uuid": ls.UUID}, "duplicate NB identity %s", ls.UUID)
			continue
		}
		seenIdentity[ls.UUID] = true

		dp := newDatapath(model.DatapathSwitch, ls.UUID, ls.Name)
		dp.IPAM = &model.IPAMState{}
		dp.Multicast = &model.MulticastConfig{}
		dp.PortGroups = make(map[string]bool)
		for _, id := range ls.DNSRecords {
			if rec, ok := nb.DNS[id]; ok {
				dp.DNSRecords = append(dp.DNSRecords, rec)
			}
		}

		if existing, ok := sbByIdentity[ls.UUID]; ok {
			dp.TunnelKey = existing.TunnelKey
		} else {
			key := alloc.Allocate(cache.DatapathTunnelKeys, hint)
			if key == 0 {
				xlog.Warnf("datapath:exhausted", nil, "datapath tunnel-key space exhausted, skipping %s", ls.Name)
				continue
			}
			cache.DatapathTunnelKeys[key] = true
			dp.TunnelKey = key
			plan.Insert("Datapath_Binding", &model.DatapathBinding{
				TunnelKey: key,
				ExternalIDs: map[string]string{
					model.DBExtIDLogicalSwitch: ls.UUID,
					model.DBExtIDName:         ls.Name,
				},
			})
		}
		hint = dp.TunnelKey
		cache.Datapaths[ls.UUID] = dp
	}

	for _, lr := range nb.Routers {
		if lr.Enabled != nil && !*lr.Enabled {
			continue
		}
		if seenIdentity[lr.UUID] {
			xlog.Warnf("datapath:duplicate-nb-uuid", logrus.Fields{"uuid": lr.UUID}, "logical switch and router share identity %s, skipping router", lr.UUID)
			continue
		}
		seenIdentity[lr.UUID] = true

		dp := newDatapath(model.DatapathRouter, lr.UUID, lr.Name)
		dp.RouterGroup = -1
		dp.Options = lr.Options
		dp.Enabled = true

		if existing, ok := sbByIdentity[lr.UUID]; ok {
			dp.TunnelKey = existing.TunnelKey
		} else {
			key := alloc.Allocate(cache.DatapathTunnelKeys, hint)
			if key == 0 {
				xlog.Warnf("datapath:exhausted", nil, "datapath tunnel-key space exhausted, skipping %s", lr.Name)
				continue
			}
			cache.DatapathTunnelKeys[key] = true
			dp.TunnelKey = key
			plan.Insert("Datapath_Binding", &model.DatapathBinding{
				TunnelKey: key,
				ExternalIDs: map[string]string{
					model.DBExtIDLogicalRouter: lr.UUID,
					model.DBExtIDName:         lr.Name,
				},
			})
		}
		hint = dp.TunnelKey
		cache.Datapaths[lr.UUID] = dp
	}

	// Anything left in sbByIdentity whose key was never claimed above
	// belongs to neither an NB switch nor an enabled NB router.
	for key, db := range sbByIdentity {
		if !seenIdentity[key] {
			plan.Delete("Datapath_Binding", db.UUID, fmt.Sprintf("no NB switch or router with identity %s", key))
		}
	}

	return cache
}

func newDatapath(kind model.DatapathKind, nbUUID, name string) *model.Datapath {
	return &model.Datapath{
		Kind:   kind,
		NBUUID: nbUUID,
		Name:   name,
	}
}

// datapathIdentity returns the NB UUID a Datapath_Binding row claims via its
// external_ids, and whether it carries exactly one such claim.
func datapathIdentity(db *model.DatapathBinding) (string, bool) {
	ls, hasLS := db.ExternalIDs[model.DBExtIDLogicalSwitch]
	lr, hasLR := db.ExternalIDs[model.DBExtIDLogicalRouter]
	switch {
	case hasLS && !hasLR:
		return ls, true
	case hasLR && !hasLS:
		return lr, true
	default:
		return "", false
	}
}
