// Package engine is the external entry point to the storage core: it
// opens a single database file, wires the disk manager, buffer pool and
// catalog together, and hands out Table handles that drive the heap and
// every index defined on that table.
package engine

import (
	"os"
	"path/filepath"

	"github.com/EasonMa1135/MiniSQL-Database-System/config"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/bufferpool"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/catalog"
	diskmanager "github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/disk_manager"
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Engine owns one open database file end to end.
type Engine struct {
	cfg  *config.Config
	disk *diskmanager.DiskManager
	pool *bufferpool.BufferPool
	cat  *catalog.Catalog
}

// Open opens (creating if necessary) the database file under cfg.DataDir
// and brings up the buffer pool and catalog above it.
func Open(cfg *config.Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, errors.Wrap(storageerrors.ErrIOError, err.Error())
	}

	path := filepath.Join(cfg.DataDir, "minisql.db")
	disk, err := diskmanager.Open(path, cfg.PageSize)
	if err != nil {
		return nil, err
	}

	pool := bufferpool.New(cfg.PoolCapacity, disk)
	disk.SetPageCache(pool)

	var cat *catalog.Catalog
	if root := disk.CatalogRootPageID(); root != diskmanager.NoPage {
		cat, err = catalog.Open(pool, root)
	} else {
		cat, err = catalog.Create(pool)
		if err == nil {
			err = disk.SetCatalogRootPageID(cat.RootPageID())
		}
	}
	if err != nil {
		disk.Close()
		return nil, err
	}

	log.WithFields(log.Fields{"path": path, "pool_capacity": cfg.PoolCapacity}).Info("engine opened")

	return &Engine{cfg: cfg, disk: disk, pool: pool, cat: cat}, nil
}

// Close flushes every dirty page and closes the database file.
func (e *Engine) Close() error {
	if err := e.pool.FlushAllPages(); err != nil {
		return err
	}
	return e.disk.Close()
}

// Catalog exposes the engine's table directory, mainly for diagnostics
// and the cmd/minisql inspection subcommands.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.cat
}

// Stats reports current buffer pool occupancy.
func (e *Engine) Stats() bufferpool.Stats {
	return e.pool.GetStats()
}

// DumpPage reads a page's raw bytes straight from disk, bypassing the
// buffer pool — for maintenance tooling inspecting a page's type tag
// when that tag itself might be the thing in question.
func (e *Engine) DumpPage(id uint32, buf []byte) error {
	return e.disk.ReadPage(id, buf)
}
