package model

// FieldMapping describes a logical shipment field and the payload keys it
// can arrive under. Aliases are tried in order and the first present value
// wins. When an alias holds a nested map, Nested lists the keys tried inside it.
type FieldMapping struct {
	Key     string   `json:"key" yaml:"key"`
	Aliases []string `json:"aliases" yaml:"aliases"`
	Nested  []string `json:"nested,omitempty" yaml:"nested,omitempty"`
}

// FieldRegistry is an indexed collection of field mappings.
type FieldRegistry struct {
	Fields []FieldMapping
	byKey  map[string]*FieldMapping
}

// Logical keys resolved through the registry.
const (
	LogicalOrigin      = "origin"
	LogicalDestination = "destination"
	LogicalCargo       = "cargo_description"
	LogicalContainer   = "container_type"
	LogicalWeight      = "weight"
	LogicalVolume      = "volume"
)

// DefaultFieldMappings is the precedence table used by the completeness
// evaluator. Weight aliases are treated as interchangeable even though a
// per-container weight and a total weight mean different things.
var DefaultFieldMappings = []FieldMapping{
	{Key: LogicalOrigin, Aliases: []string{FieldOrigin, FieldPOL}},
	{Key: LogicalDestination, Aliases: []string{FieldDestination, FieldPOD}},
	{Key: LogicalCargo, Aliases: []string{FieldCargoDescription, FieldCommodity}},
	{Key: LogicalContainer, Aliases: []string{FieldContainerType}, Nested: []string{"standardized_type", "standard_type"}},
	{Key: LogicalWeight, Aliases: []string{FieldWeightPerContainer, FieldWeight, FieldTotalWeight}},
	{Key: LogicalVolume, Aliases: []string{FieldVolume, FieldTotalVolume}},
}

// NewFieldRegistry creates a FieldRegistry with indexed lookups. A mapping
// without aliases resolves its own key.
func NewFieldRegistry(fields []FieldMapping) *FieldRegistry {
	r := &FieldRegistry{
		Fields: fields,
		byKey:  make(map[string]*FieldMapping, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		if len(f.Aliases) == 0 {
			f.Aliases = []string{f.Key}
		}
		r.byKey[f.Key] = f
	}
	return r
}

// DefaultFieldRegistry returns a registry over DefaultFieldMappings.
func DefaultFieldRegistry() *FieldRegistry {
	mappings := make([]FieldMapping, len(DefaultFieldMappings))
	copy(mappings, DefaultFieldMappings)
	return NewFieldRegistry(mappings)
}

// ByKey returns the field mapping for the given key, or nil if not found.
func (r *FieldRegistry) ByKey(key string) *FieldMapping {
	return r.byKey[key]
}

// Resolve returns the first present value for the logical key. Unknown
// keys are looked up verbatim.
func (r *FieldRegistry) Resolve(fields Fields, key string) (any, bool) {
	m := r.ByKey(key)
	if m == nil {
		return fields.Get(key)
	}
	for _, alias := range m.Aliases {
		v, ok := fields.Get(alias)
		if !ok {
			continue
		}
		if len(m.Nested) > 0 {
			if nested, isMap := asMap(v); isMap {
				for _, nk := range m.Nested {
					if nv, found := nested.Get(nk); found {
						return nv, true
					}
				}
				continue
			}
		}
		return v, true
	}
	return nil, false
}

func asMap(v any) (Fields, bool) {
	switch x := v.(type) {
	case Fields:
		return x, true
	case map[string]any:
		return Fields(x), true
	}
	return nil, false
}
