package orm

import (
	"fmt"
	"time"

	"github.com/strataorm/strata/pkg/schema"
	"github.com/strataorm/strata/pkg/settings"
)

type defineConfig struct {
	table          string
	keys           []string
	cache          *schema.CachePolicy
	autoFetch      *bool
	autoFetchLimit *int
	autoSave       *bool
	uuidKey        bool
	methods        map[string]Method
	validations    map[string][]ValidatorFunc
	hooks          Hooks
}

// DefineOption configures a model at definition time.
type DefineOption func(*defineConfig)

// WithTable overrides the table name (defaults to the model name).
func WithTable(name string) DefineOption {
	return func(cfg *defineConfig) { cfg.table = name }
}

// WithKey overrides the primary-key property name(s). Unlisted key
// properties are synthesized as engine-generated integer keys.
func WithKey(names ...string) DefineOption {
	return func(cfg *defineConfig) { cfg.keys = names }
}

// WithCache enables indefinite identity caching (the default).
func WithCache() DefineOption {
	return func(cfg *defineConfig) { cfg.cache = &schema.CachePolicy{Mode: schema.CacheEnabled} }
}

// WithCacheTTL enables identity caching with eviction after ttl from last
// access.
func WithCacheTTL(ttl time.Duration) DefineOption {
	return func(cfg *defineConfig) {
		cfg.cache = &schema.CachePolicy{Mode: schema.CacheTTL, TTL: ttl}
	}
}

// WithoutCache disables identity caching: every load produces a fresh,
// independently mutable instance.
func WithoutCache() DefineOption {
	return func(cfg *defineConfig) { cfg.cache = &schema.CachePolicy{Mode: schema.CacheDisabled} }
}

// WithAutoFetch enables eager association resolution on load, following
// associations up to limit hops.
func WithAutoFetch(limit int) DefineOption {
	enabled := true
	return func(cfg *defineConfig) {
		cfg.autoFetch = &enabled
		cfg.autoFetchLimit = &limit
	}
}

// WithAutoSave makes Instance.Set persist immediately instead of waiting
// for an explicit Save.
func WithAutoSave() DefineOption {
	enabled := true
	return func(cfg *defineConfig) { cfg.autoSave = &enabled }
}

// WithUUIDKey synthesizes a text primary key populated with a random UUID
// on first save.
func WithUUIDKey() DefineOption {
	return func(cfg *defineConfig) { cfg.uuidKey = true }
}

// WithMethods attaches named functions callable on every instance.
func WithMethods(methods map[string]Method) DefineOption {
	return func(cfg *defineConfig) { cfg.methods = methods }
}

// WithValidations attaches per-property validators, run in declaration
// order before every save.
func WithValidations(validations map[string][]ValidatorFunc) DefineOption {
	return func(cfg *defineConfig) { cfg.validations = validations }
}

// WithHooks attaches lifecycle callbacks.
func WithHooks(hooks Hooks) DefineOption {
	return func(cfg *defineConfig) { cfg.hooks = hooks }
}

// Define declares a model on the connection. The definition is immutable
// once created, except for association declarations. Property names absent
// from the key list default to the settings' primary-key template.
func (c *Connection) Define(name string, properties []schema.Property, opts ...DefineOption) (*Model, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	cfg := &defineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	keys := cfg.keys
	if len(keys) == 0 {
		keys = []string{c.settings.GetString(settings.KeyPrimaryKey, "id")}
	}

	// Synthesize undeclared key properties: text for UUID keys, otherwise
	// an engine-generated integer.
	props := make([]schema.Property, len(properties))
	copy(props, properties)
	declared := make(map[string]bool, len(props))
	for _, p := range props {
		declared[p.Name] = true
	}
	for _, key := range keys {
		if declared[key] {
			continue
		}
		keyType := schema.TypeInteger
		if cfg.uuidKey {
			keyType = schema.TypeText
		}
		props = append([]schema.Property{{Name: key, Type: keyType, Required: true}}, props...)
	}

	def, err := schema.NewModelDefinition(name, cfg.table, props, keys)
	if err != nil {
		return nil, err
	}

	def.AutoFetch = c.settings.GetBool("instance.autoFetch", false)
	def.AutoFetchLimit = c.settings.GetInt("instance.autoFetchLimit", 1)
	def.AutoSave = c.settings.GetBool("instance.autoSave", false)
	if cfg.autoFetch != nil {
		def.AutoFetch = *cfg.autoFetch
	}
	if cfg.autoFetchLimit != nil {
		def.AutoFetchLimit = *cfg.autoFetchLimit
	}
	if cfg.autoSave != nil {
		def.AutoSave = *cfg.autoSave
	}

	policy := schema.CachePolicy{Mode: schema.CacheEnabled}
	if !c.settings.GetBool("instance.cache", true) {
		policy = schema.CachePolicy{Mode: schema.CacheDisabled}
	}
	if cfg.cache != nil {
		policy = *cfg.cache
	}
	def.Cache = policy

	if err := c.registry.Register(def); err != nil {
		return nil, err
	}
	c.cache.SetPolicy(name, policy)

	m := &Model{
		conn:        c,
		def:         def,
		hooks:       cfg.hooks,
		methods:     cfg.methods,
		validations: cfg.validations,
		uuidKey:     cfg.uuidKey,
		serialKey:   !cfg.uuidKey && len(keys) == 1 && def.Property(keys[0]).Type == schema.TypeInteger,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	if _, dup := c.models[name]; dup {
		return nil, fmt.Errorf("model %s already defined", name)
	}
	c.models[name] = m
	c.logger.Info().Str("model", name).Str("table", def.Table).Msg("model defined")
	return m, nil
}
