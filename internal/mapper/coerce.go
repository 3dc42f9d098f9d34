package mapper

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/units"
	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

// dateFormats are tried in order after ISO-8601.
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	"2006",
}

// coerce converts a raw value to the attribute's declared kind, converting
// numeric values from the source unit into the canonical unit.
func coerce(v model.Value, attr *vocab.Attribute, sourceUnits string) (model.Value, error) {
	switch attr.Kind {
	case model.KindString:
		s, err := parseString(v)
		if err != nil {
			return model.Value{}, err
		}
		canon, ok := attr.EnumValue(s)
		if !ok {
			return model.Value{}, eris.Errorf("value %q not in enum domain", s)
		}
		return model.StringValue(canon), nil

	case model.KindFloat:
		f, err := parseFloat(v)
		if err != nil {
			return model.Value{}, err
		}
		f, err = convertUnits(f, sourceUnits, attr.Unit)
		if err != nil {
			return model.Value{}, err
		}
		return model.FloatValue(f), nil

	case model.KindInt:
		f, err := parseFloat(v)
		if err != nil {
			return model.Value{}, err
		}
		f, err = convertUnits(f, sourceUnits, attr.Unit)
		if err != nil {
			return model.Value{}, err
		}
		return model.IntValue(int64(math.Trunc(f))), nil

	case model.KindBool:
		return parseBool(v)

	case model.KindDate, model.KindDateTime:
		return parseDate(v, attr.Kind)

	default:
		return model.Value{}, eris.Errorf("cannot coerce into kind %s", attr.Kind)
	}
}

// convertUnits applies the source-to-canonical unit conversion. Matching or
// absent unit declarations pass through.
func convertUnits(f float64, from, to string) (float64, error) {
	if from == "" || to == "" || units.Normalize(from) == units.Normalize(to) {
		return f, nil
	}
	return units.Convert(f, from, to)
}

func parseString(v model.Value) (string, error) {
	if s, ok := v.AsString(); ok {
		return s, nil
	}
	if v.IsNull() {
		return "", eris.New("null value")
	}
	return v.String(), nil
}

func parseFloat(v model.Value) (float64, error) {
	if f, ok := v.AsFloat(); ok {
		return f, nil
	}
	s, ok := v.AsString()
	if !ok {
		return 0, eris.Errorf("cannot parse %s as number", v.Kind())
	}
	// Tolerate thousands separators.
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("cannot parse %q as number", s)
	}
	return f, nil
}

func parseBool(v model.Value) (model.Value, error) {
	if b, ok := v.AsBool(); ok {
		return model.BoolValue(b), nil
	}
	if f, ok := v.AsFloat(); ok {
		return model.BoolValue(f != 0), nil
	}
	s, ok := v.AsString()
	if !ok {
		return model.Value{}, eris.Errorf("cannot parse %s as boolean", v.Kind())
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "t", "1":
		return model.BoolValue(true), nil
	case "false", "no", "n", "f", "0":
		return model.BoolValue(false), nil
	}
	return model.Value{}, eris.Errorf("cannot parse %q as boolean", s)
}

func parseDate(v model.Value, kind model.Kind) (model.Value, error) {
	if t, ok := v.AsTime(); ok {
		if kind == model.KindDate {
			return model.DateValue(t), nil
		}
		return model.DateTimeValue(t), nil
	}
	s, ok := v.AsString()
	if !ok {
		return model.Value{}, eris.Errorf("cannot parse %s as date", v.Kind())
	}
	s = strings.TrimSpace(s)

	if kind == model.KindDateTime {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return model.DateTimeValue(t), nil
		}
		if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
			return model.DateTimeValue(t), nil
		}
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			if kind == model.KindDate {
				return model.DateValue(t), nil
			}
			return model.DateTimeValue(t), nil
		}
	}
	return model.Value{}, eris.Errorf("cannot parse %q as date", s)
}
