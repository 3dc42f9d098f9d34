// Package units converts source-reported measurements into the canonical
// units of the OPGEE vocabulary. The table covers the oilfield units the
// harmonized sources actually report; barrels follow the 42-gallon
// definition, and the oilfield M prefix means thousand.
package units

import (
	"strings"

	"github.com/rotisserie/eris"
)

// dimension groups tokens that convert linearly into a shared base unit.
type dimension string

const (
	dimLength        dimension = "length"
	dimVolume        dimension = "volume"
	dimLiquidRate    dimension = "liquid_rate"
	dimGasRate       dimension = "gas_rate"
	dimGasOilRatio   dimension = "gas_oil_ratio"
	dimConcentration dimension = "concentration"
	dimPressure      dimension = "pressure"
	dimTemperature   dimension = "temperature"
	dimMass          dimension = "mass"
	dimDiameter      dimension = "diameter"
	dimTime          dimension = "time"
	dimGravity       dimension = "gravity"
	dimRatio         dimension = "ratio"
)

type unitDef struct {
	dim    dimension
	factor float64 // base units per 1 of this unit
}

// aliases fold the spellings seen in source files onto one token.
var aliases = map[string]string{
	"meter": "m", "meters": "m", "mtr": "m",
	"feet": "ft", "foot": "ft",
	"kilometer": "km", "kilometers": "km",
	"mile": "mi", "miles": "mi",
	"inch": "in", "inches": "in",
	"centimeter": "cm", "centimeters": "cm",
	"millimeter": "mm", "millimeters": "mm",
	"barrel": "bbl", "barrels": "bbl", "bo": "bbl",
	"mbbl": "kbbl", "mmbbl": "megabbl",
	"gallon": "gal", "gallons": "gal",
	"bpd": "bbl/d", "bbl/day": "bbl/d", "bopd": "bbl/d",
	"kbbl/day": "kbbl/d", "mbbl/d": "kbbl/d",
	"m3/day": "m3/d",
	"mscf/d": "kscf/d", "mmscf/d": "megascf/d", "scf/day": "scf/d",
	"mscf/bbl": "kscf/bbl",
	"percent": "%", "pct": "%", "pc": "%",
	"fraction": "frac",
	"psia": "psi", "psig": "psi",
	"tonne": "t", "tonnes": "t", "ton": "t",
	"year": "yr", "years": "yr",
	"f": "degf", "fahrenheit": "degf",
	"c": "degc", "celsius": "degc",
	"api gravity": "api",
	"bbl/bbl": "ratio", "scf/scf": "ratio", "m3/m3_liquid": "ratio",
	"bbl_water/bbl_oil": "ratio", "bbl_steam/bbl_oil": "ratio",
}

var defs = map[string]unitDef{
	// length, base m
	"m": {dimLength, 1}, "ft": {dimLength, 1 / 3.28084}, "km": {dimLength, 1000},
	"mi": {dimLength, 1609.344},

	// volume, base bbl
	"bbl": {dimVolume, 1}, "kbbl": {dimVolume, 1000}, "megabbl": {dimVolume, 1e6},
	"gal": {dimVolume, 1.0 / 42.0}, "m3": {dimVolume, 6.28981},

	// liquid rate, base bbl/d
	"bbl/d": {dimLiquidRate, 1}, "kbbl/d": {dimLiquidRate, 1000},
	"m3/d": {dimLiquidRate, 6.28981},

	// gas rate, base scf/d
	"scf/d": {dimGasRate, 1}, "kscf/d": {dimGasRate, 1e3}, "megascf/d": {dimGasRate, 1e6},

	// gas-oil ratio, base scf/bbl
	"scf/bbl": {dimGasOilRatio, 1}, "kscf/bbl": {dimGasOilRatio, 1000},
	"m3/m3": {dimGasOilRatio, 5.61458},

	// concentration, base frac
	"frac": {dimConcentration, 1}, "%": {dimConcentration, 0.01},
	"ppm": {dimConcentration, 1e-6},

	// pressure, base psi
	"psi": {dimPressure, 1}, "kpa": {dimPressure, 0.145038},
	"bar": {dimPressure, 14.5038}, "mpa": {dimPressure, 145.038},
	"atm": {dimPressure, 14.6959},

	// temperature handled separately, factors unused
	"degf": {dimTemperature, 1}, "degc": {dimTemperature, 1},

	// mass, base t
	"t": {dimMass, 1}, "kg": {dimMass, 0.001}, "kt": {dimMass, 1000},

	// diameter, base in
	"in": {dimDiameter, 1}, "cm": {dimDiameter, 0.393701}, "mm": {dimDiameter, 0.0393701},

	// time, base yr
	"yr": {dimTime, 1},

	// dimensionless
	"api":   {dimGravity, 1},
	"ratio": {dimRatio, 1},
}

// Normalize folds a source unit spelling onto its table token.
func Normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if a, ok := aliases[u]; ok {
		return a
	}
	return u
}

// Known reports whether the unit is in the conversion table.
func Known(unit string) bool {
	_, ok := defs[Normalize(unit)]
	return ok
}

// Convertible reports whether from can be converted to to.
func Convertible(from, to string) bool {
	f, okF := defs[Normalize(from)]
	t, okT := defs[Normalize(to)]
	return okF && okT && f.dim == t.dim
}

// Convert changes v from one unit to another. Empty unit strings on both
// sides pass the value through untouched.
func Convert(v float64, from, to string) (float64, error) {
	nf, nt := Normalize(from), Normalize(to)
	if nf == nt {
		return v, nil
	}
	if nf == "" || nt == "" {
		return 0, eris.Errorf("units: cannot convert between %q and %q", from, to)
	}

	f, ok := defs[nf]
	if !ok {
		return 0, eris.Errorf("units: unknown unit %q", from)
	}
	t, ok := defs[nt]
	if !ok {
		return 0, eris.Errorf("units: unknown unit %q", to)
	}
	if f.dim != t.dim {
		return 0, eris.Errorf("units: cannot convert %s (%s) to %s (%s)", nf, f.dim, nt, t.dim)
	}

	if f.dim == dimTemperature {
		return convertTemperature(v, nf, nt), nil
	}
	return v * f.factor / t.factor, nil
}

func convertTemperature(v float64, from, to string) float64 {
	if from == "degc" && to == "degf" {
		return v*9/5 + 32
	}
	if from == "degf" && to == "degc" {
		return (v - 32) * 5 / 9
	}
	return v
}
