// Package pricing computes tax and shipping charges for an order based on the
// delivery address. All functions are pure: same inputs, same outputs.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zone is a shipping zone derived from the delivery address.
type Zone string

// Shipping zones, ordered from cheapest to most expensive delivery.
const (
	ZoneMetroManila Zone = "Metro Manila"
	ZoneLuzon       Zone = "Luzon"
	ZoneVisayas     Zone = "Visayas"
	ZoneMindanao    Zone = "Mindanao"
	ZoneDefault     Zone = "Default"
)

// ZoneConfig holds the pricing parameters for a single shipping zone.
// TaxRate is per-zone even though all zones currently share the 12% VAT rate.
type ZoneConfig struct {
	TaxRate               decimal.Decimal
	BaseFee               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	MaxFee                decimal.Decimal
	EstimatedDays         string
}

var zoneConfigs = map[Zone]ZoneConfig{
	ZoneMetroManila: {
		TaxRate:               decimal.RequireFromString("0.12"),
		BaseFee:               decimal.NewFromInt(100),
		FreeShippingThreshold: decimal.NewFromInt(1000),
		MaxFee:                decimal.NewFromInt(200),
		EstimatedDays:         "1-2 days",
	},
	ZoneLuzon: {
		TaxRate:               decimal.RequireFromString("0.12"),
		BaseFee:               decimal.NewFromInt(150),
		FreeShippingThreshold: decimal.NewFromInt(1500),
		MaxFee:                decimal.NewFromInt(300),
		EstimatedDays:         "2-3 days",
	},
	ZoneVisayas: {
		TaxRate:               decimal.RequireFromString("0.12"),
		BaseFee:               decimal.NewFromInt(200),
		FreeShippingThreshold: decimal.NewFromInt(2000),
		MaxFee:                decimal.NewFromInt(400),
		EstimatedDays:         "3-5 days",
	},
	ZoneMindanao: {
		TaxRate:               decimal.RequireFromString("0.12"),
		BaseFee:               decimal.NewFromInt(250),
		FreeShippingThreshold: decimal.NewFromInt(2500),
		MaxFee:                decimal.NewFromInt(500),
		EstimatedDays:         "5-7 days",
	},
	ZoneDefault: {
		TaxRate:               decimal.RequireFromString("0.12"),
		BaseFee:               decimal.NewFromInt(200),
		FreeShippingThreshold: decimal.NewFromInt(2000),
		MaxFee:                decimal.NewFromInt(400),
		EstimatedDays:         "3-5 days",
	},
}

// zoneKeywords maps region keywords to zones. Matching is ordered: the first
// zone with a keyword contained in the address state wins.
var zoneKeywords = []struct {
	zone     Zone
	keywords []string
}{
	{ZoneMetroManila, []string{
		"metro manila", "ncr", "manila", "quezon city", "makati", "pasig",
		"taguig", "paranaque", "mandaluyong", "marikina", "caloocan",
		"malabon", "navotas", "san juan", "pateros", "valenzuela",
		"las pinas", "muntinlupa",
	}},
	{ZoneLuzon, []string{
		"luzon", "calabarzon", "central luzon", "ilocos", "cagayan valley",
		"bicol", "cordillera", "mimaropa",
	}},
	{ZoneVisayas, []string{
		"visayas", "western visayas", "central visayas", "eastern visayas",
		"iloilo", "cebu", "bohol", "negros", "samar", "leyte",
	}},
	{ZoneMindanao, []string{
		"mindanao", "davao", "zamboanga", "northern mindanao", "soccsksargen",
		"caraga", "bangsamoro", "cotabato", "sulu", "tawi-tawi",
	}},
}

// ZoneFor resolves the shipping zone for an address state/region string.
// Unknown or empty states fall back to ZoneDefault.
func ZoneFor(state string) Zone {
	s := strings.ToLower(strings.TrimSpace(state))
	if s == "" {
		return ZoneDefault
	}
	for _, zk := range zoneKeywords {
		for _, kw := range zk.keywords {
			if strings.Contains(s, kw) {
				return zk.zone
			}
		}
	}
	return ZoneDefault
}

// ConfigFor returns the pricing configuration for a zone.
func ConfigFor(zone Zone) ZoneConfig {
	cfg, ok := zoneConfigs[zone]
	if !ok {
		return zoneConfigs[ZoneDefault]
	}
	return cfg
}

// Tax returns the tax amount for a subtotal in the given zone, rounded to two
// decimal places. Non-positive subtotals are not taxed.
func Tax(subtotal decimal.Decimal, zone Zone) decimal.Decimal {
	if subtotal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return subtotal.Mul(ConfigFor(zone).TaxRate).Round(2)
}

// ShippingFee returns the delivery fee for a subtotal in the given zone.
//
// Empty carts ship nothing, so a zero subtotal carries no fee. Orders at or
// above the zone's free-shipping threshold ship free. Below it the base fee
// applies, discounted by 50% above 0.7x the threshold and by 30% above 0.5x.
// The result is rounded to whole currency units and capped at the zone's
// maximum fee.
func ShippingFee(subtotal decimal.Decimal, zone Zone) decimal.Decimal {
	if subtotal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	cfg := ConfigFor(zone)
	if subtotal.GreaterThanOrEqual(cfg.FreeShippingThreshold) {
		return decimal.Zero
	}

	fee := cfg.BaseFee
	switch {
	case subtotal.GreaterThanOrEqual(cfg.FreeShippingThreshold.Mul(decimal.RequireFromString("0.7"))):
		fee = cfg.BaseFee.Mul(decimal.RequireFromString("0.5"))
	case subtotal.GreaterThanOrEqual(cfg.FreeShippingThreshold.Mul(decimal.RequireFromString("0.5"))):
		fee = cfg.BaseFee.Mul(decimal.RequireFromString("0.7"))
	}
	fee = fee.Round(0)

	if fee.GreaterThan(cfg.MaxFee) {
		return cfg.MaxFee
	}
	return fee
}

// Charges is the full pricing breakdown for an order.
type Charges struct {
	Zone        Zone
	Tax         decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal
}

// ComputeCharges resolves the zone from the address state and returns tax,
// shipping fee, and the grand total (subtotal + tax + fee, rounded to two
// decimal places).
func ComputeCharges(subtotal decimal.Decimal, state string) Charges {
	zone := ZoneFor(state)
	tax := Tax(subtotal, zone)
	fee := ShippingFee(subtotal, zone)

	return Charges{
		Zone:        zone,
		Tax:         tax,
		ShippingFee: fee,
		Total:       subtotal.Add(tax).Add(fee).Round(2),
	}
}

// ZoneInfo describes a zone for display: its config plus the delivery
// estimate shown to customers at checkout.
type ZoneInfo struct {
	Zone          Zone
	BaseFee       decimal.Decimal
	Threshold     decimal.Decimal
	MaxFee        decimal.Decimal
	EstimatedDays string
}

// InfoFor returns display information for the zone serving the given state.
func InfoFor(state string) ZoneInfo {
	zone := ZoneFor(state)
	cfg := ConfigFor(zone)
	return ZoneInfo{
		Zone:          zone,
		BaseFee:       cfg.BaseFee,
		Threshold:     cfg.FreeShippingThreshold,
		MaxFee:        cfg.MaxFee,
		EstimatedDays: cfg.EstimatedDays,
	}
}
