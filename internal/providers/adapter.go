package providers

import (
	"context"
	"time"

	weather "agromet-cloud/internal/weather/domain"
)

// RawSection is one granularity block of a provider response: parallel
// arrays keyed by the provider's own field names, including "time".
// Values arrive as decoded JSON, so numbers are float64, timestamps are
// strings and gaps are nil.
type RawSection map[string][]any

// Query describes a single fetch against a provider. Params carry
// provider-side field names, already converted from canonical ones.
type Query struct {
	Lat         float64
	Lon         float64
	Params      []string
	Granularity weather.Granularity

	// From/To are inclusive calendar dates. For forecasts both may be
	// zero, in which case the provider's default horizon applies.
	From time.Time
	To   time.Time

	// Secret is the credential used for this exchange, empty for
	// keyless access.
	Secret string

	// OnExchange, when set, is invoked exactly once for every HTTP
	// response received from the provider, including retried attempts
	// and non-2xx answers. Usage accounting hangs off this hook.
	OnExchange func()
}

// Adapter is the provider-facing port. One implementation per provider
// code; all timestamps in and out are UTC.
type Adapter interface {
	Forecast(ctx context.Context, q Query) (RawSection, error)
	History(ctx context.Context, q Query) (RawSection, error)
}
