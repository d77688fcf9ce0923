package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrCountryRequired rejects catalog queries without a country code.
var ErrCountryRequired = errors.New("country code is required")

// countryNames is the static reference table of canonical display names.
// A provider supplying one of these codes gets the canonical name regardless
// of what its own catalog calls the country.
var countryNames = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"CA": "Canada",
	"FR": "France",
	"DE": "Germany",
	"ES": "Spain",
	"IT": "Italy",
	"NL": "Netherlands",
	"PL": "Poland",
	"PT": "Portugal",
	"SE": "Sweden",
	"NG": "Nigeria",
	"GH": "Ghana",
	"KE": "Kenya",
	"ZA": "South Africa",
	"IN": "India",
	"ID": "Indonesia",
	"PH": "Philippines",
	"VN": "Vietnam",
	"BR": "Brazil",
	"MX": "Mexico",
	"AR": "Argentina",
}

// ProviderServices groups one provider's ranked services for a country.
type ProviderServices struct {
	Provider            string    `json:"provider"`
	ProviderDisplayName string    `json:"provider_display_name"`
	Services            []Service `json:"services"`
}

// Catalog aggregates country and service listings across providers. It is a
// read-only projection over upstream responses at call time; providers that
// fail or return garbage are skipped, never fatal.
type Catalog struct {
	providers []Provider
}

// NewCatalog builds a catalog over the given providers.
func NewCatalog(providers ...Provider) *Catalog {
	return &Catalog{providers: providers}
}

// Provider returns a registered provider by ID.
func (c *Catalog) Provider(id string) (Provider, bool) {
	for _, p := range c.providers {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// Providers returns all registered providers.
func (c *Catalog) Providers() []Provider {
	return c.providers
}

// ListCountries returns the merged country list. With a provider ID only that
// provider is queried. Duplicate codes across providers are merged, with the
// reference table name taking precedence over whatever came first.
func (c *Catalog) ListCountries(ctx context.Context, providerID string) ([]Country, error) {
	targets, err := c.targets(providerID)
	if err != nil {
		return nil, err
	}

	perProvider := c.fanOutCountries(ctx, targets)

	seen := make(map[string]int)
	merged := make([]Country, 0)

	for _, list := range perProvider {
		for _, raw := range list {
			code := strings.ToUpper(strings.TrimSpace(raw.Code))
			if code == "" {
				continue
			}

			name := collapseWhitespace(raw.Name)
			if canonical, ok := countryNames[code]; ok {
				name = canonical
			}

			if idx, ok := seen[code]; ok {
				if _, canonical := countryNames[code]; canonical {
					merged[idx].Name = name
				}
				continue
			}

			flag := raw.Flag
			if flag == "" {
				flag = flagGlyph(code)
			}

			seen[code] = len(merged)
			merged = append(merged, Country{
				Code:     code,
				Name:     name,
				Flag:     flag,
				Provider: raw.Provider,
			})
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
	return merged, nil
}

// ListServices returns the ranked service list for a country, merged across
// providers unless a provider ID narrows the query.
func (c *Catalog) ListServices(ctx context.Context, countryCode, providerID string) ([]Service, error) {
	if strings.TrimSpace(countryCode) == "" {
		return nil, ErrCountryRequired
	}

	targets, err := c.targets(providerID)
	if err != nil {
		return nil, err
	}

	perProvider := c.fanOutServices(ctx, targets, countryCode)

	all := make([]Service, 0)
	for _, list := range perProvider {
		all = append(all, list...)
	}

	return rankServices(all), nil
}

// ListServicesAllProviders returns per-provider ranked groups for a country.
// Providers that fail or have nothing for the country are omitted; an empty
// result means "no services available", not an error.
func (c *Catalog) ListServicesAllProviders(ctx context.Context, countryCode string) ([]ProviderServices, error) {
	if strings.TrimSpace(countryCode) == "" {
		return nil, ErrCountryRequired
	}

	perProvider := c.fanOutServices(ctx, c.providers, countryCode)

	groups := make([]ProviderServices, 0, len(c.providers))
	for i, p := range c.providers {
		if len(perProvider[i]) == 0 {
			continue
		}
		groups = append(groups, ProviderServices{
			Provider:            p.ID(),
			ProviderDisplayName: p.DisplayName(),
			Services:            rankServices(perProvider[i]),
		})
	}

	return groups, nil
}

func (c *Catalog) targets(providerID string) ([]Provider, error) {
	if providerID == "" {
		return c.providers, nil
	}
	p, ok := c.Provider(providerID)
	if !ok {
		return nil, errors.New("unknown provider: " + providerID)
	}
	return []Provider{p}, nil
}

// fanOutCountries queries providers concurrently. Results are kept in
// registry order so merge precedence stays deterministic.
func (c *Catalog) fanOutCountries(ctx context.Context, targets []Provider) [][]Country {
	results := make([][]Country, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range targets {
		i, p := i, p
		g.Go(func() error {
			list, err := p.Countries(ctx)
			if err != nil {
				log.Printf("[Catalog] %s countries unavailable: %v", p.ID(), err)
				return nil
			}
			results[i] = list
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Catalog) fanOutServices(ctx context.Context, targets []Provider, countryCode string) [][]Service {
	results := make([][]Service, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range targets {
		i, p := i, p
		g.Go(func() error {
			list, err := p.Services(ctx, countryCode)
			if err != nil {
				log.Printf("[Catalog] %s services unavailable for %s: %v", p.ID(), countryCode, err)
				return nil
			}
			results[i] = list
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// rankServices groups by canonical key, sorts each group by ascending cost
// with descending availability as tie-break, and flags the cheapest entry and
// the most available one (when any availability is known). AvailableCount 0
// is the "auto/unknown" sentinel, never treated as an error.
func rankServices(services []Service) []Service {
	if len(services) == 0 {
		return []Service{}
	}

	groups := make(map[string][]Service)
	order := make([]string, 0)
	for _, svc := range services {
		key := svc.ServiceKey
		if key == "" {
			key = CanonicalServiceKey(svc.DisplayName)
		}
		svc.ServiceKey = key
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], svc)
	}
	sort.Strings(order)

	ranked := make([]Service, 0, len(services))
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Cost != group[j].Cost {
				return group[i].Cost < group[j].Cost
			}
			return group[i].AvailableCount > group[j].AvailableCount
		})

		group[0].BestPrice = true

		best := -1
		for i, svc := range group {
			if svc.AvailableCount > 0 && (best < 0 || svc.AvailableCount > group[best].AvailableCount) {
				best = i
			}
		}
		if best >= 0 {
			group[best].MostAvailable = true
		}

		ranked = append(ranked, group...)
	}

	return ranked
}

// flagGlyph builds the regional-indicator emoji for an ISO-2 code.
func flagGlyph(code string) string {
	if len(code) != 2 {
		return ""
	}
	out := make([]rune, 0, 2)
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ""
		}
		out = append(out, 0x1F1E6+r-'A')
	}
	return string(out)
}
