package model

// RowOp is one insert/update/delete against a named SB table, the unit of
// work C2..C6, C10, and C12 accumulate and C9's sibling, the non-flow
// writer, applies in the pass's single transaction (spec.md §4.9 "Writes
// are batched in a single transaction per cycle").
type RowOp struct {
	Table string
	UUID  string // empty for Insert (the server assigns one)
	Row   interface{}
	// Comment is attached to deletes that need an audit trail (spec.md §4.2
	// "Any SB row lacking a proper key is deleted with an audit comment").
	Comment string
}

// Plan accumulates the row operations produced by one reconciliation pass.
// The Logical_Flow/Multicast_Group/IGMP_Group tables are diffed by
// internal/differ's dedicated hash-set pass (spec.md §4.9), which appends
// its operations to this same Plan.
type Plan struct {
	Inserts []RowOp
	Updates []RowOp
	Deletes []RowOp

	// PurgeMACBindingsByPort names logical ports whose stale MAC_Binding
	// rows must be purged after a port-binding delete (spec.md §4.3
	// "purge stale MAC-binding rows by port name").
	PurgeMACBindingsByPort []string
}

func (p *Plan) Insert(table string, row interface{}) {
	p.Inserts = append(p.Inserts, RowOp{Table: table, Row: row})
}

func (p *Plan) Update(table, uuid string, row interface{}) {
	p.Updates = append(p.Updates, RowOp{Table: table, UUID: uuid, Row: row})
}

func (p *Plan) Delete(table, uuid, comment string) {
	p.Deletes = append(p.Deletes, RowOp{Table: table, UUID: uuid, Comment: comment})
}

// PurgeMACBindings records that logical port name's MAC_Binding rows must
// be removed on commit.
func (p *Plan) PurgeMACBindings(name string) {
	p.PurgeMACBindingsByPort = append(p.PurgeMACBindingsByPort, name)
}

// Empty reports whether the plan has no work at all, which is the
// idempotence check spec.md invariant 4 relies on ("no NB changes
// produces zero SB writes").
func (p *Plan) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0 && len(p.PurgeMACBindingsByPort) == 0
}
