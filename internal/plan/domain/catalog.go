package domain

import (
	"errors"
	"sort"
	"strings"

	"github.com/ecclesiahq/ecclesia/internal/config"
)

const (
	PlanFree   = "free"
	PlanBronze = "bronze"
	PlanPrata  = "prata"
	PlanOuro   = "ouro"
)

var ErrInvalidPlan = errors.New("invalid_plan")

var displayNames = map[string]string{
	PlanFree:   "Gratuito",
	PlanBronze: "Bronze",
	PlanPrata:  "Prata",
	PlanOuro:   "Ouro",
}

// Plan is one priced entry of the catalog. Prices are monthly, in reais.
type Plan struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Price       float64 `json:"price"`
}

// Catalog is the single source of truth for plan prices. It is built once
// from configuration and passed to every component that prices something.
type Catalog struct {
	version string
	plans   map[string]Plan
}

func NewCatalog(version string, prices map[string]float64) *Catalog {
	plans := make(map[string]Plan, len(prices))
	for id, price := range prices {
		id = normalize(id)
		if id == "" {
			continue
		}
		name, ok := displayNames[id]
		if !ok {
			name = strings.ToUpper(id[:1]) + id[1:]
		}
		plans[id] = Plan{ID: id, DisplayName: name, Price: price}
	}
	return &Catalog{version: version, plans: plans}
}

// NewCatalogFromConfig is the fx constructor.
func NewCatalogFromConfig(cfg config.Config) *Catalog {
	return NewCatalog(cfg.Plans.Version, cfg.Plans.Prices)
}

func (c *Catalog) Version() string { return c.version }

func (c *Catalog) Lookup(plan string) (Plan, error) {
	p, ok := c.plans[normalize(plan)]
	if !ok {
		return Plan{}, ErrInvalidPlan
	}
	return p, nil
}

func (c *Catalog) PriceOf(plan string) (float64, error) {
	p, err := c.Lookup(plan)
	if err != nil {
		return 0, err
	}
	return p.Price, nil
}

func (c *Catalog) DisplayName(plan string) (string, error) {
	p, err := c.Lookup(plan)
	if err != nil {
		return "", err
	}
	return p.DisplayName, nil
}

func (c *Catalog) IsValid(plan string) bool {
	_, ok := c.plans[normalize(plan)]
	return ok
}

// Plans lists the catalog ordered by price.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price == out[j].Price {
			return out[i].ID < out[j].ID
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func normalize(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}
