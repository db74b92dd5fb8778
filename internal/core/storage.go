package core

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	graphmemory "github.com/shinyyxxx/Mindsim/internal/infra/graph/memory"
	graphsqlite "github.com/shinyyxxx/Mindsim/internal/infra/graph/sqlite"
	spatialmemory "github.com/shinyyxxx/Mindsim/internal/infra/spatial/memory"
	spatialpostgres "github.com/shinyyxxx/Mindsim/internal/infra/spatial/postgres"
	spatialsqlite "github.com/shinyyxxx/Mindsim/internal/infra/spatial/sqlite"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// StorageDriver identifies a concrete backend implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL + PostGIS server
)

type (
	GraphStore   = domain.GraphStore
	GraphTx      = domain.GraphTx
	GraphView    = domain.GraphView
	SpatialStore = domain.SpatialStore
)

// StorageConfig selects the graph and spatial backends from the
// environment. Both default to embedded sqlite files.
type StorageConfig struct {
	GraphDriver   string `env:"MINDSIM_GRAPH_DRIVER" envDefault:"sqlite"`
	GraphPath     string `env:"MINDSIM_GRAPH_PATH" envDefault:"./mindsim.db"`
	SpatialDriver string `env:"MINDSIM_SPATIAL_DRIVER" envDefault:"sqlite"`
	SpatialPath   string `env:"MINDSIM_SPATIAL_PATH" envDefault:"./mindsim_spatial.db"`
	PostgresDSN   string `env:"MINDSIM_POSTGRES_DSN"`
	SRID          int    `env:"MINDSIM_SRID" envDefault:"4979"`
}

// OpenStores selects graph and spatial backends using environment
// variables.
func OpenStores() (GraphStore, SpatialStore, error) {
	var cfg StorageConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, nil, fmt.Errorf("parse storage config: %w", err)
	}
	return OpenStoresWith(cfg)
}

// OpenStoresWith constructs graph and spatial backends from an explicit
// configuration. On a partial failure the already-opened store is closed
// before the error returns.
func OpenStoresWith(cfg StorageConfig) (GraphStore, SpatialStore, error) {
	graph, err := openGraph(cfg)
	if err != nil {
		return nil, nil, err
	}
	spatial, err := openSpatial(cfg)
	if err != nil {
		_ = graph.Close()
		return nil, nil, err
	}
	return graph, spatial, nil
}

func openGraph(cfg StorageConfig) (GraphStore, error) {
	switch StorageDriver(cfg.GraphDriver) {
	case StorageMemory:
		return graphmemory.NewStore(), nil
	case StorageSQLite:
		return graphsqlite.NewStore(cfg.GraphPath)
	default:
		return nil, fmt.Errorf("unknown graph driver %q", cfg.GraphDriver)
	}
}

func openSpatial(cfg StorageConfig) (SpatialStore, error) {
	switch StorageDriver(cfg.SpatialDriver) {
	case StorageMemory:
		return spatialmemory.NewStore(), nil
	case StorageSQLite:
		return spatialsqlite.NewStore(cfg.SpatialPath, cfg.SRID)
	case StoragePostgres:
		return spatialpostgres.NewStore(cfg.PostgresDSN, cfg.SRID)
	default:
		return nil, fmt.Errorf("unknown spatial driver %q", cfg.SpatialDriver)
	}
}
