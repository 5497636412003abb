package commands

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/strataorm/strata/pkg/orm"
	"github.com/strataorm/strata/pkg/schema"
)

// Manifest is the YAML description of the models the CLI manages.
type Manifest struct {
	Models []ModelManifest `yaml:"models"`
}

// ModelManifest declares one model.
type ModelManifest struct {
	Name       string             `yaml:"name"`
	Table      string             `yaml:"table"`
	Properties []PropertyManifest `yaml:"properties"`
	Keys       []string           `yaml:"keys"`
	UUIDKey    bool               `yaml:"uuid_key"`

	// Cache is "enabled", "disabled", or a duration such as "30s".
	Cache string `yaml:"cache"`

	HasOne  []AssocManifest `yaml:"has_one"`
	HasMany []AssocManifest `yaml:"has_many"`
}

// PropertyManifest declares one property.
type PropertyManifest struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Size     int      `yaml:"size"`
	Required bool     `yaml:"required"`
	Values   []string `yaml:"values"`
}

// AssocManifest declares one association.
type AssocManifest struct {
	Name       string             `yaml:"name"`
	Target     string             `yaml:"target"`
	ForeignKey string             `yaml:"foreign_key"`
	JoinTable  string             `yaml:"join_table"`
	Reverse    string             `yaml:"reverse"`
	Extra      []PropertyManifest `yaml:"extra"`
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(buf, &m); err != nil {
		return nil, errors.WithMessagef(err, "parse manifest %s", path)
	}
	if len(m.Models) == 0 {
		return nil, errors.Errorf("manifest %s declares no models", path)
	}
	return &m, nil
}

// Apply defines every manifest model on the connection: models first, then
// associations, so forward references between models resolve.
func (m *Manifest) Apply(conn *orm.Connection) error {
	defined := make(map[string]*orm.Model, len(m.Models))
	for _, mm := range m.Models {
		opts, err := mm.defineOptions()
		if err != nil {
			return err
		}
		model, err := conn.Define(mm.Name, mm.properties(), opts...)
		if err != nil {
			return err
		}
		defined[mm.Name] = model
	}

	for _, mm := range m.Models {
		model := defined[mm.Name]
		for _, am := range mm.HasOne {
			target, ok := defined[am.Target]
			if !ok {
				return errors.Errorf("model %s: has_one %s targets undefined model %s", mm.Name, am.Name, am.Target)
			}
			var opts []orm.AssocOption
			if am.ForeignKey != "" {
				opts = append(opts, orm.WithForeignKey(am.ForeignKey))
			}
			if err := model.HasOne(am.Name, target, opts...); err != nil {
				return err
			}
		}
		for _, am := range mm.HasMany {
			target, ok := defined[am.Target]
			if !ok {
				return errors.Errorf("model %s: has_many %s targets undefined model %s", mm.Name, am.Name, am.Target)
			}
			var opts []orm.AssocOption
			if am.JoinTable != "" {
				opts = append(opts, orm.WithJoinTable(am.JoinTable))
			}
			if am.Reverse != "" {
				opts = append(opts, orm.WithReverse(am.Reverse))
			}
			if len(am.Extra) > 0 {
				opts = append(opts, orm.WithExtraColumns(manifestProperties(am.Extra)...))
			}
			if err := model.HasMany(am.Name, target, opts...); err != nil {
				return err
			}
		}
	}
	return nil
}

func (mm ModelManifest) properties() []schema.Property {
	return manifestProperties(mm.Properties)
}

func manifestProperties(in []PropertyManifest) []schema.Property {
	props := make([]schema.Property, len(in))
	for i, pm := range in {
		props[i] = schema.Property{
			Name:     pm.Name,
			Type:     schema.PropertyType(pm.Type),
			Size:     pm.Size,
			Required: pm.Required,
			Values:   pm.Values,
		}
	}
	return props
}

func (mm ModelManifest) defineOptions() ([]orm.DefineOption, error) {
	var opts []orm.DefineOption
	if mm.Table != "" {
		opts = append(opts, orm.WithTable(mm.Table))
	}
	if len(mm.Keys) > 0 {
		opts = append(opts, orm.WithKey(mm.Keys...))
	}
	if mm.UUIDKey {
		opts = append(opts, orm.WithUUIDKey())
	}
	switch mm.Cache {
	case "", "enabled":
	case "disabled":
		opts = append(opts, orm.WithoutCache())
	default:
		ttl, err := time.ParseDuration(mm.Cache)
		if err != nil {
			return nil, errors.WithMessagef(err, "model %s: cache %q", mm.Name, mm.Cache)
		}
		opts = append(opts, orm.WithCacheTTL(ttl))
	}
	return opts, nil
}
