package services

import (
	"context"
	"fmt"
	"strings"
)

// AutoRouter serves auto-mode orders: it looks a service up by its
// natural-language name, picks the cheapest capable provider and places the
// order there. Callers never learn routing internals beyond the provider
// recorded on the resulting order.
type AutoRouter struct {
	catalog *Catalog
}

// NewAutoRouter builds a router over the catalog's providers.
func NewAutoRouter(catalog *Catalog) *AutoRouter {
	return &AutoRouter{catalog: catalog}
}

// Resolve finds the cheapest service matching the given natural-language
// name for the country. A service matches on canonical key or on normalized
// display-name containment.
func (r *AutoRouter) Resolve(ctx context.Context, countryCode, name string) (*Service, error) {
	return r.ResolveExcluding(ctx, countryCode, name, "")
}

// ResolveExcluding is Resolve with one provider ruled out, used when a
// fallback retries an order that provider just rejected. The exclusion is
// dropped if it would leave no candidates.
func (r *AutoRouter) ResolveExcluding(ctx context.Context, countryCode, name, excludeProvider string) (*Service, error) {
	wanted := FallbackKey(name)
	if wanted == "" {
		return nil, ErrServiceNotFound
	}

	ranked, err := r.catalog.ListServices(ctx, countryCode, "")
	if err != nil {
		return nil, err
	}

	wantedKey := CanonicalServiceKey(wanted)

	match := func(svc *Service) bool {
		if svc.ServiceKey == wantedKey {
			return true
		}
		return strings.Contains(FallbackKey(svc.DisplayName), wanted)
	}

	// Ranked output is cheapest-first within each group, so the first match wins.
	var fallback *Service
	for i := range ranked {
		if !match(&ranked[i]) {
			continue
		}
		if ranked[i].Provider != excludeProvider {
			return &ranked[i], nil
		}
		if fallback == nil {
			fallback = &ranked[i]
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrServiceNotFound
}

// Place creates the order on the resolved service's provider.
func (r *AutoRouter) Place(ctx context.Context, countryCode string, svc *Service) (*ProviderOrder, error) {
	p, ok := r.catalog.Provider(svc.Provider)
	if !ok {
		return nil, fmt.Errorf("routed to unknown provider %q", svc.Provider)
	}
	return p.CreateOrder(ctx, countryCode, svc.ServiceID)
}
