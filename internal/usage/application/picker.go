package application

import (
	"context"
	"errors"
	"time"

	masterdata "agromet-cloud/internal/masterdata/domain"
)

// Selection is the outcome of a credential pick for one provider.
// HasCapacity=true with a nil Credential means the provider has no
// credentials configured and none is needed.
type Selection struct {
	Credential  *masterdata.Credential
	HasCapacity bool
}

// Picker chooses a credential with spare capacity for a provider.
type Picker struct {
	providers masterdata.ProviderRepository
	counter   *Counter
}

// NewPicker constructs a Picker.
func NewPicker(providers masterdata.ProviderRepository, counter *Counter) (*Picker, error) {
	if providers == nil {
		return nil, errors.New("credential picker: nil provider repository")
	}
	if counter == nil {
		return nil, errors.New("credential picker: nil counter")
	}
	return &Picker{providers: providers, counter: counter}, nil
}

// PickCredential scans the provider's active credentials in creation
// order and returns the first with capacity. This is deliberately
// first-fit rather than load-balancing: the earliest credential is
// drained before the next one is touched.
func (p *Picker) PickCredential(ctx context.Context, provider masterdata.Provider, now time.Time) (Selection, error) {
	if p == nil {
		return Selection{}, errors.New("credential picker: nil")
	}

	credentials, err := p.providers.ListActiveCredentials(ctx, provider.ID)
	if err != nil {
		return Selection{}, err
	}
	if len(credentials) == 0 {
		return Selection{HasCapacity: true}, nil
	}

	for i := range credentials {
		ok, _, err := p.counter.ReadCapacity(ctx, credentials[i].ID, provider.Config.Limits, now)
		if err != nil {
			return Selection{}, err
		}
		if ok {
			return Selection{Credential: &credentials[i], HasCapacity: true}, nil
		}
	}
	return Selection{HasCapacity: false}, nil
}
