package server

import (
	"github.com/marmos91/fileshare/pkg/blob"
	"github.com/marmos91/fileshare/pkg/metrics"
	"github.com/marmos91/fileshare/pkg/perm"
	"github.com/marmos91/fileshare/pkg/store"
)

// Engine bundles the stores the handlers operate on. One Engine is created
// at startup and shared by every connection.
type Engine struct {
	Store   *store.Store
	Blobs   *blob.Store
	Perms   *perm.Engine
	Metrics *metrics.ServerMetrics
}

// NewEngine wires the permission engine to the metadata store. Metrics may
// be nil.
func NewEngine(st *store.Store, blobs *blob.Store, m *metrics.ServerMetrics) *Engine {
	return &Engine{
		Store:   st,
		Blobs:   blobs,
		Perms:   perm.NewEngine(st),
		Metrics: m,
	}
}
