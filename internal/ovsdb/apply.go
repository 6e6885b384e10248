package ovsdb

import (
	"context"
	"fmt"
	"reflect"

	libovsdbclient "github.com/ovn-org/libovsdb/client"
	libovsdbmodel "github.com/ovn-org/libovsdb/model"
	"github.com/ovn-org/libovsdb/ovsdb"

	"github.com/ovnxlate/ovnxlate/internal/model"
)

// Apply lowers one model.Plan into OVSDB operations and commits them in
// at most two transactions, one per database the plan touches (spec.md
// §4.9 "Writes are batched in a single transaction per cycle; on any
// failure the entire cycle's writes are discarded and retried next
// poll"). Per-database grouping is forced by OVSDB itself: there is no
// such thing as a transaction spanning two databases.
func (c *Client) Apply(ctx context.Context, plan *model.Plan) error {
	if plan.Empty() {
		return nil
	}

	nbOps, sbOps, err := buildOperations(c.nb, c.sb, c.sbModel, plan)
	if err != nil {
		return fmt.Errorf("build operations: %w", err)
	}

	if len(nbOps) > 0 {
		if _, err := c.nb.Transact(ctx, nbOps...); err != nil {
			return fmt.Errorf("northbound transact: %w", err)
		}
	}
	if len(sbOps) > 0 {
		if _, err := c.sb.Transact(ctx, sbOps...); err != nil {
			return fmt.Errorf("southbound transact: %w", err)
		}
	}
	return nil
}

// dbRouter picks nb or sb for a table name by tableDatabase (which
// apply_test.go covers); it makes no libovsdb.Client calls of its own.
func dbRouter(nb, sb libovsdbclient.Client, table string) libovsdbclient.Client {
	if tableDatabase(table) == dbNorthbound {
		return nb
	}
	return sb
}

func buildOperations(nb, sb libovsdbclient.Client, sbModel libovsdbmodel.ClientDBModel, plan *model.Plan) (nbOps, sbOps []ovsdb.Operation, err error) {
	route := func(table string, ops []ovsdb.Operation) {
		if tableDatabase(table) == dbNorthbound {
			nbOps = append(nbOps, ops...)
		} else {
			sbOps = append(sbOps, ops...)
		}
	}

	for _, op := range plan.Inserts {
		ops, e := dbRouter(nb, sb, op.Table).Create(op.Row)
		if e != nil {
			return nil, nil, fmt.Errorf("insert %s: %w", op.Table, e)
		}
		route(op.Table, ops)
	}

	for _, op := range plan.Updates {
		row, e := rowWithUUID(op.Row, op.UUID)
		if e != nil {
			return nil, nil, fmt.Errorf("update %s/%s: %w", op.Table, op.UUID, e)
		}
		ops, e := dbRouter(nb, sb, op.Table).Where(row).Update(row)
		if e != nil {
			return nil, nil, fmt.Errorf("update %s/%s: %w", op.Table, op.UUID, e)
		}
		route(op.Table, ops)
	}

	for _, op := range plan.Deletes {
		dbModel := sbModel
		if tableDatabase(op.Table) == dbNorthbound {
			dbModel = nil // no NB table is deleted from; deleteIdentity rejects a nil model
		}
		identity, e := deleteIdentity(dbModel, op.Table, op.UUID)
		if e != nil {
			return nil, nil, fmt.Errorf("delete %s/%s: %w", op.Table, op.UUID, e)
		}
		ops, e := dbRouter(nb, sb, op.Table).Where(identity).Delete()
		if e != nil {
			return nil, nil, fmt.Errorf("delete %s/%s: %w", op.Table, op.UUID, e)
		}
		route(op.Table, ops)
	}

	for _, port := range plan.PurgeMACBindingsByPort {
		binding := &model.MACBinding{}
		ops, e := sb.WhereAny(binding, libovsdbmodel.Condition{
			Field:    &binding.LogicalPort,
			Function: ovsdb.ConditionEqual,
			Value:    port,
		}).Delete()
		if e != nil {
			return nil, nil, fmt.Errorf("purge mac bindings for %s: %w", port, e)
		}
		sbOps = append(sbOps, ops...)
	}

	return nbOps, sbOps, nil
}

// rowWithUUID returns a copy of row with its UUID field set to uuid.
// internal/reconcile and internal/sync build Update rows without a UUID
// (the identity is threaded separately through model.Plan.Update's uuid
// argument, since the same struct literal also serves fresh inserts of
// the same kind), so it is reflected back in here before the row is
// handed to the ORM, which identifies a row to update by its UUID field.
func rowWithUUID(row interface{}, uuid string) (interface{}, error) {
	if m, ok := row.(map[string]string); ok {
		// internal/reconcile/ipam.go updates Logical_Switch_Port's
		// dynamic_addresses column directly with a raw column map
		// rather than a full row struct; there is nothing to reflect
		// into, the caller already named the single column.
		cp := make(map[string]string, len(m))
		for k, v := range m {
			cp[k] = v
		}
		return cp, nil
	}

	v := reflect.ValueOf(row)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("update row of type %T is not a pointer to struct", row)
	}
	cp := reflect.New(v.Elem().Type())
	cp.Elem().Set(v.Elem())
	field := cp.Elem().FieldByName("UUID")
	if !field.IsValid() || field.Kind() != reflect.String {
		return nil, fmt.Errorf("update row of type %T has no string UUID field", row)
	}
	field.SetString(uuid)
	return cp.Interface(), nil
}

// deleteIdentity builds the zero-value row a Delete needs to identify its
// target by UUID alone. dbModel is nil for northbound tables, and a nil
// dbModel is an error: this engine never deletes from an NB table
// (Logical_Switch_Port is only ever updated). Southbound deletes always
// carry a real dbModel.
func deleteIdentity(dbModel libovsdbmodel.ClientDBModel, table, uuid string) (interface{}, error) {
	if dbModel == nil {
		return nil, fmt.Errorf("no db model registered to delete from table %s", table)
	}
	row, err := dbModel.NewModel(table)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(row).Elem()
	field := v.FieldByName("UUID")
	if !field.IsValid() {
		return nil, fmt.Errorf("table %s row has no UUID field", table)
	}
	field.SetString(uuid)
	return row, nil
}
