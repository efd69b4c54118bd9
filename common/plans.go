package common

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Plan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Months     int    `json:"months"`
	PriceCents int64  `json:"priceCents"`
	Currency   string `json:"currency"`
}

// LoadPlans reads plans.json from the config dir, falling back to the
// built-in catalog when the file is absent.
func LoadPlans(cfgDir string) ([]Plan, error) {
	path := filepath.Join(cfgDir, "plans.json")
	if _, err := os.Stat(path); err != nil {
		return DefaultPlans(), nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans.json: %w", err)
	}

	var plans []Plan
	if err := json.Unmarshal(buf, &plans); err != nil {
		return nil, fmt.Errorf("failed to parse plans.json: %w", err)
	}

	return plans, nil
}

func DefaultPlans() []Plan {
	return []Plan{
		{ID: "monthly", Name: "Monthly", Months: 1, PriceCents: 4900, Currency: "usd"},
		{ID: "quarterly", Name: "Quarterly", Months: 3, PriceCents: 12900, Currency: "usd"},
		{ID: "annual", Name: "Annual", Months: 12, PriceCents: 44900, Currency: "usd"},
	}
}

func GetPlan(plans []Plan, planID string) *Plan {
	for _, plan := range plans {
		if plan.ID == planID {
			return &plan
		}
	}
	return nil
}

// ValidIncrement reports whether months matches one of the catalog's plan
// durations; extensions are only sold in these increments.
func ValidIncrement(plans []Plan, months int) bool {
	for _, plan := range plans {
		if plan.Months == months {
			return true
		}
	}
	return false
}
