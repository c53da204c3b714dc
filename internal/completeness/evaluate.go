// Package completeness decides whether a thread's cumulative shipment
// record holds enough information to quote, or whether the customer must
// be asked for more.
package completeness

import (
	"strings"

	"github.com/sells-group/freight-triage/internal/model"
)

// Missing-field tags, reported in evaluation order.
const (
	TagOrigin             = "origin"
	TagDestination        = "destination"
	TagCargoDescription   = "cargo_description"
	TagContainerType      = "container_type"
	TagContainerCount     = "container_count"
	TagWeight             = "weight"
	TagPackageCount       = "package_count"
	TagTotalWeight        = "total_weight"
	TagDimensions         = "dimensions"
	TagWeightOrVolume     = "weight_or_volume"
	TagMSDS               = "msds"
	TagTemperatureControl = "temperature_control"
	TagCargoNature        = "cargo_nature"
	TagIncoterms          = "incoterms"
	TagTimeline           = "timeline"
	TagDeliveryAddress    = "delivery_address"
)

// Shipment modes.
const (
	ModeFCL = "FCL"
	ModeLCL = "LCL"
)

var (
	// IncotermKeywords satisfy the incoterms requirement when found in text.
	IncotermKeywords = []string{"incoterm", "fob", "cif", "cfr", "exw", "dap", "ddp", "dat", "fas", "fca"}

	// StackabilityKeywords satisfy the cargo_nature requirement when found in text.
	StackabilityKeywords = []string{"stackable", "non-stackable"}

	dangerousCargoTypes  = map[string]bool{"Dangerous Goods": true, "dangerous_goods": true, "dg": true}
	perishableCargoTypes = map[string]bool{"Perishable Goods": true, "perishable": true, "reefer": true}

	// advisoryTags are reported but never block completeness.
	advisoryTags = map[string]bool{TagCargoNature: true}
)

// Result is the outcome of an evaluation. Missing may be non-empty while
// Complete is true because advisory tags are reported for visibility only;
// callers must check Complete.
type Result struct {
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing"`
}

// Blocking returns the missing tags that prevent completeness.
func (r Result) Blocking() []string {
	out := make([]string, 0, len(r.Missing))
	for _, tag := range r.Missing {
		if !advisoryTags[tag] {
			out = append(out, tag)
		}
	}
	return out
}

// IsAdvisory reports whether tag is reported without blocking completeness.
func IsAdvisory(tag string) bool {
	return advisoryTags[tag]
}

// Evaluator applies the completeness rules. The zero value is not usable;
// construct with New.
type Evaluator struct {
	matcher TextMatcher
	fields  *model.FieldRegistry
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMatcher sets the text heuristic used for keyword fallbacks.
func WithMatcher(m TextMatcher) Option {
	return func(e *Evaluator) {
		if m != nil {
			e.matcher = m
		}
	}
}

// WithFieldRegistry overrides the alias precedence table.
func WithFieldRegistry(r *model.FieldRegistry) Option {
	return func(e *Evaluator) {
		if r != nil {
			e.fields = r
		}
	}
}

// New creates an Evaluator. Defaults to substring matching and the
// default alias table.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		matcher: SubstringMatcher{},
		fields:  model.DefaultFieldRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEvaluator = New()

// Evaluate runs the default evaluator.
func Evaluate(state model.CumulativeState, texts []string) Result {
	return defaultEvaluator.Evaluate(state, texts)
}

// EvaluateThread runs the default evaluator over a thread context.
func EvaluateThread(state model.CumulativeState, thread model.ThreadContext) Result {
	return defaultEvaluator.EvaluateThread(state, thread)
}

// EvaluateThread evaluates state against the thread's texts. When the
// cumulative shipment or timeline section is empty, the corresponding
// section of the thread's latest extraction is used instead.
func (e *Evaluator) EvaluateThread(state model.CumulativeState, thread model.ThreadContext) Result {
	if thread.Latest != nil {
		if state.Shipment.Empty() && !thread.Latest.Shipment.Empty() {
			state.Shipment = thread.Latest.Shipment
		}
		if state.Timeline.Empty() && !thread.Latest.Timeline.Empty() {
			state.Timeline = thread.Latest.Timeline
		}
	}
	return e.Evaluate(state, thread.Texts())
}

// Evaluate checks state against the business rules. texts is every
// available message body of the thread; it is only used for the keyword
// fallbacks. Evaluate never fails: malformed values count as missing.
func (e *Evaluator) Evaluate(state model.CumulativeState, texts []string) Result {
	shipment := state.Shipment
	timeline := state.Timeline

	_, hasOrigin := e.fields.Resolve(shipment, model.LogicalOrigin)
	_, hasDestination := e.fields.Resolve(shipment, model.LogicalDestination)
	_, hasCargo := e.fields.Resolve(shipment, model.LogicalCargo)
	_, hasContainer := e.fields.Resolve(shipment, model.LogicalContainer)
	_, hasWeight := e.fields.Resolve(shipment, model.LogicalWeight)
	_, hasVolume := e.fields.Resolve(shipment, model.LogicalVolume)

	mode := shipmentMode(shipment, hasContainer)

	var missing []string
	need := func(ok bool, tag string) {
		if !ok {
			missing = append(missing, tag)
		}
	}

	need(hasOrigin, TagOrigin)
	need(hasDestination, TagDestination)
	need(hasCargo, TagCargoDescription)
	need(hasContainer, TagContainerType)

	switch mode {
	case ModeFCL:
		need(shipment.Has(model.FieldContainerCount), TagContainerCount)
		need(hasWeight, TagWeight)
	case ModeLCL:
		need(shipment.Has(model.FieldPackageCount), TagPackageCount)
		need(hasWeight, TagTotalWeight)
		need(shipment.Has(model.FieldDimensions), TagDimensions)
	default:
		need(hasWeight || hasVolume, TagWeightOrVolume)
	}

	cargoType := cargoTypeOf(shipment)
	if dangerousCargoTypes[cargoType] {
		need(shipment.Has(model.FieldMSDSAvailable), TagMSDS)
	}
	if perishableCargoTypes[cargoType] {
		need(shipment.Has(model.FieldTemperatureControl), TagTemperatureControl)
	}

	need(shipment.Has(model.FieldCargoNature) || e.matcher.ContainsAny(texts, StackabilityKeywords), TagCargoNature)
	need(shipment.Has(model.FieldIncoterms) || e.matcher.ContainsAny(texts, IncotermKeywords), TagIncoterms)

	need(timeline.Has(model.FieldReadyDate) ||
		timeline.Has(model.FieldETD) ||
		timeline.Has(model.FieldRequestedDates), TagTimeline)

	if shipment.Has(model.FieldDoorDelivery) {
		need(shipment.Has(model.FieldDeliveryAddress), TagDeliveryAddress)
	}

	res := Result{Missing: missing}
	if res.Missing == nil {
		res.Missing = []string{}
	}
	res.Complete = len(res.Blocking()) == 0
	return res
}

// shipmentMode returns the explicit shipment type, or infers FCL from a
// container type and LCL from a total weight or package count. An empty
// result means the mode is undetermined.
func shipmentMode(shipment model.Fields, hasContainer bool) string {
	if explicit := shipment.String(model.FieldShipmentType); explicit != "" {
		return strings.ToUpper(explicit)
	}
	if hasContainer {
		return ModeFCL
	}
	if shipment.Has(model.FieldTotalWeight) || shipment.Has(model.FieldPackageCount) {
		return ModeLCL
	}
	return ""
}

func cargoTypeOf(shipment model.Fields) string {
	v, ok := shipment.Get(model.FieldCargoType)
	if !ok {
		return ""
	}
	s, isStr := v.(string)
	if !isStr {
		return ""
	}
	return strings.TrimSpace(s)
}
