package ovsdb

import (
	"context"
	"fmt"

	libovsdbclient "github.com/ovn-org/libovsdb/client"
	libovsdbmodel "github.com/ovn-org/libovsdb/model"

	"github.com/ovnxlate/ovnxlate/internal/xlog"
)

// Client holds the two independent OVSDB connections this module needs:
// one to OVN_Northbound (read-mostly), one to OVN_Southbound (read and
// write). spec.md §1 describes both as given; dialing them is this
// package's entire reason to exist.
type Client struct {
	nb      libovsdbclient.Client
	sb      libovsdbclient.Client
	nbModel libovsdbmodel.ClientDBModel
	sbModel libovsdbmodel.ClientDBModel
}

// Dial connects to both databases and starts monitoring every table this
// module cares about, so the in-memory cache libovsdb maintains is kept
// current between reconciliation cycles (spec.md §5 "the engine polls a
// cache kept current by table-monitor updates, not by re-querying").
func Dial(ctx context.Context, nbEndpoint, sbEndpoint string) (*Client, error) {
	nbModel, err := northboundModel()
	if err != nil {
		return nil, fmt.Errorf("northbound db model: %w", err)
	}
	sbModel, err := southboundModel()
	if err != nil {
		return nil, fmt.Errorf("southbound db model: %w", err)
	}

	nb, err := libovsdbclient.NewOVSDBClient(nbModel, libovsdbclient.WithEndpoint(nbEndpoint))
	if err != nil {
		return nil, fmt.Errorf("dial northbound %s: %w", nbEndpoint, err)
	}
	if err := nb.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect northbound %s: %w", nbEndpoint, err)
	}
	if _, err := nb.MonitorAll(ctx); err != nil {
		nb.Disconnect()
		return nil, fmt.Errorf("monitor northbound %s: %w", nbEndpoint, err)
	}

	sb, err := libovsdbclient.NewOVSDBClient(sbModel, libovsdbclient.WithEndpoint(sbEndpoint))
	if err != nil {
		nb.Disconnect()
		return nil, fmt.Errorf("dial southbound %s: %w", sbEndpoint, err)
	}
	if err := sb.Connect(ctx); err != nil {
		nb.Disconnect()
		return nil, fmt.Errorf("connect southbound %s: %w", sbEndpoint, err)
	}
	if _, err := sb.MonitorAll(ctx); err != nil {
		nb.Disconnect()
		sb.Disconnect()
		return nil, fmt.Errorf("monitor southbound %s: %w", sbEndpoint, err)
	}

	xlog.WithFields(map[string]interface{}{"nb": nbEndpoint, "sb": sbEndpoint}).Info("connected to OVN databases")
	return &Client{nb: nb, sb: sb, nbModel: nbModel, sbModel: sbModel}, nil
}

// Close disconnects both databases.
func (c *Client) Close() {
	c.nb.Disconnect()
	c.sb.Disconnect()
}
