package model

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Section names used by the extraction producer and the persisted state.
const (
	SectionShipment  = "shipment_details"
	SectionContainer = "container_details"
	SectionTimeline  = "timeline_information"
	SectionRate      = "rate_information"
	SectionContact   = "contact_information"
)

// Well-known shipment_details keys.
const (
	FieldOrigin             = "origin"
	FieldPOL                = "pol"
	FieldDestination        = "destination"
	FieldPOD                = "pod"
	FieldCargoDescription   = "cargo_description"
	FieldCommodity          = "commodity"
	FieldContainerType      = "container_type"
	FieldContainerCount     = "container_count"
	FieldWeightPerContainer = "weight_per_container"
	FieldWeight             = "weight"
	FieldTotalWeight        = "total_weight"
	FieldVolume             = "volume"
	FieldTotalVolume        = "total_volume"
	FieldShipmentType       = "shipment_type"
	FieldCargoType          = "cargo_type"
	FieldMSDSAvailable      = "msds_available"
	FieldTemperatureControl = "temperature_control"
	FieldDoorDelivery       = "door_delivery"
	FieldDeliveryAddress    = "delivery_address"
	FieldPackageCount       = "package_count"
	FieldDimensions         = "dimensions"
	FieldCargoNature        = "cargo_nature"
	FieldIncoterms          = "incoterms"
)

// Well-known timeline_information keys.
const (
	FieldReadyDate      = "ready_date"
	FieldETD            = "etd"
	FieldETA            = "eta"
	FieldTransitDays    = "transit_days"
	FieldRequestedDates = "requested_dates"
)

// Fields is a sparse bag of extracted values keyed by field name. Values
// are whatever the producer emitted: strings, numbers, booleans or nested maps.
type Fields map[string]any

// Get returns the value stored under key when it is present.
func (f Fields) Get(key string) (any, bool) {
	v, ok := f[key]
	if !ok || !Present(v) {
		return nil, false
	}
	return v, true
}

// Has reports whether key holds a present value.
func (f Fields) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// String renders the value under key, or "" when absent.
func (f Fields) String(key string) string {
	v, ok := f.Get(key)
	if !ok {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("%v", v)
}

// Empty reports whether no key holds a present value.
func (f Fields) Empty() bool {
	for _, v := range f {
		if Present(v) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy. Nested maps and slices are copied so the
// result shares no mutable storage with f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Fields:
		return x.Clone()
	case map[string]any:
		return map[string]any(Fields(x).Clone())
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}

// Present reports whether v carries information. nil, blank strings,
// numeric zero, false, NaN and empty collections are all treated as absent,
// so a declared weight of exactly zero is indistinguishable from unset.
func Present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case bool:
		return x
	case int:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case uint:
		return x != 0
	case uint32:
		return x != 0
	case uint64:
		return x != 0
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case float64:
		return x != 0 && !math.IsNaN(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f != 0
		}
		return strings.TrimSpace(x.String()) != ""
	case Fields:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return Present(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16:
		return rv.Int() != 0
	case reflect.Uint8, reflect.Uint16:
		return rv.Uint() != 0
	}
	return true
}
