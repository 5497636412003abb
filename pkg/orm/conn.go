// Package orm is the entry point of strata: it wires the schema registry,
// the identity cache, the query layer and the hook pipeline around a driver
// adapter.
package orm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strataorm/strata/pkg/cache"
	"github.com/strataorm/strata/pkg/driver"
	"github.com/strataorm/strata/pkg/metrics"
	"github.com/strataorm/strata/pkg/registry"
	"github.com/strataorm/strata/pkg/schema"
	"github.com/strataorm/strata/pkg/settings"
)

// Connection owns one driver adapter plus the per-connection state: a
// settings snapshot, the model registry and the identity cache. Connections
// are safe for concurrent use; operations issued independently carry no
// ordering guarantee relative to each other.
type Connection struct {
	drv      driver.Driver
	settings *settings.Settings
	registry *registry.Registry
	cache    *cache.Cache
	logger   zerolog.Logger
	metrics  *metrics.Collector

	mu     sync.RWMutex
	models map[string]*Model
	closed bool
}

// ConnOption configures a Connection at connect time.
type ConnOption func(*Connection)

// WithLogger attaches a zerolog logger; statements log at debug level.
func WithLogger(logger zerolog.Logger) ConnOption {
	return func(c *Connection) { c.logger = logger }
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(collector *metrics.Collector) ConnOption {
	return func(c *Connection) { c.metrics = collector }
}

// WithSettings seeds the connection from a settings object. The connection
// keeps an independent snapshot; later changes to the original do not
// affect it.
func WithSettings(s *settings.Settings) ConnOption {
	return func(c *Connection) { c.settings = s.Snapshot() }
}

// Connect wraps a driver adapter in a Connection.
func Connect(drv driver.Driver, opts ...ConnOption) *Connection {
	c := &Connection{
		drv:      drv,
		settings: settings.New(),
		registry: registry.NewRegistry(),
		cache:    cache.New(),
		logger:   zerolog.Nop(),
		models:   make(map[string]*Model),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns the connection's settings snapshot.
func (c *Connection) Settings() *settings.Settings {
	return c.settings
}

// Driver returns the underlying adapter.
func (c *Connection) Driver() driver.Driver {
	return c.drv
}

// Model returns a defined model by name.
func (c *Connection) Model(name string) (*Model, error) {
	c.mu.RLock()
	m, ok := c.models[name]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotDefined
	}
	return m, nil
}

// Close releases the driver. Further operations fail with
// ErrConnectionClosed.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.drv.Close()
}

// CreateSchema creates the table of every defined model plus the join
// tables of their to-many associations.
func (c *Connection) CreateSchema(ctx context.Context) error {
	for _, def := range c.tableDefinitions() {
		if _, err := c.exec(ctx, def.Name, &driver.Statement{Kind: driver.KindCreateTable, Define: def}); err != nil {
			return err
		}
		c.logger.Info().Str("table", def.Name).Msg("table created")
	}
	return nil
}

// DropSchema drops every defined model's table and join tables.
func (c *Connection) DropSchema(ctx context.Context) error {
	defs := c.tableDefinitions()
	// Join tables first, then model tables.
	for i := len(defs) - 1; i >= 0; i-- {
		if _, err := c.exec(ctx, defs[i].Name, &driver.Statement{Kind: driver.KindDropTable, Define: defs[i]}); err != nil {
			return err
		}
		c.logger.Info().Str("table", defs[i].Name).Msg("table dropped")
	}
	return nil
}

func (c *Connection) tableDefinitions() []*driver.TableDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var defs []*driver.TableDefinition
	seenJoin := make(map[string]bool)
	for _, m := range c.models {
		defs = append(defs, m.tableDefinition())
	}
	for _, m := range c.models {
		for _, assoc := range m.def.Associations {
			if assoc.Kind != schema.HasMany || assoc.Reversed || seenJoin[assoc.JoinTable] {
				continue
			}
			seenJoin[assoc.JoinTable] = true
			sourceKey := m.def.Property(m.def.Key()).Type
			targetKey := sourceKey
			if target, ok := c.models[assoc.Target]; ok {
				targetKey = target.def.Property(target.def.Key()).Type
			}
			defs = append(defs, joinTableDefinition(assoc, sourceKey, targetKey))
		}
	}
	return defs
}

func (c *Connection) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	return nil
}

// query runs a row-returning statement with logging and metrics.
func (c *Connection) query(ctx context.Context, model string, stmt *driver.Statement) ([]driver.Row, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := c.drv.Query(ctx, stmt)
	c.observe(model, stmt, start, err)
	return rows, err
}

// exec runs a non-returning statement with logging and metrics.
func (c *Connection) exec(ctx context.Context, model string, stmt *driver.Statement) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	start := time.Now()
	affected, err := c.drv.Exec(ctx, stmt)
	c.observe(model, stmt, start, err)
	return affected, err
}

// count runs a count statement engine-side.
func (c *Connection) count(ctx context.Context, model string, stmt *driver.Statement) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := c.drv.Count(ctx, stmt)
	c.observe(model, stmt, start, err)
	return n, err
}

func (c *Connection) observe(model string, stmt *driver.Statement, start time.Time, err error) {
	elapsed := time.Since(start)
	op := stmtOp(stmt.Kind)

	evt := c.logger.Debug().Str("op", op).Str("model", model).Dur("elapsed", elapsed)
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("statement executed")

	if c.metrics == nil {
		return
	}
	c.metrics.StatementsTotal.WithLabelValues(op, model).Inc()
	c.metrics.StatementDuration.WithLabelValues(op, model).Observe(elapsed.Seconds())
	if err != nil {
		c.metrics.StatementErrors.WithLabelValues(op, model).Inc()
	}
}

func (c *Connection) cacheHit(model string, hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHits.WithLabelValues(model).Inc()
	} else {
		c.metrics.CacheMisses.WithLabelValues(model).Inc()
	}
}

func stmtOp(kind driver.Kind) string {
	switch kind {
	case driver.KindSelect:
		return "select"
	case driver.KindCount:
		return "count"
	case driver.KindInsert:
		return "insert"
	case driver.KindUpdate:
		return "update"
	case driver.KindDelete:
		return "delete"
	case driver.KindCreateTable:
		return "create_table"
	case driver.KindDropTable:
		return "drop_table"
	}
	return "unknown"
}
