package schema

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

// ErrViolation marks a mapping config that failed validation. Fatal: no
// source I/O happens after a violation.
var ErrViolation = eris.New("schema: config violation")

// rawSchema is the mapping-configuration contract. Extra keys are tolerated
// the way the upstream consumers tolerate them; everything declared here is
// enforced.
const rawSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://pyxis.energy/schemas/mapping-config.v1.json",
  "title": "Source mapping configuration",
  "type": "object",
  "required": ["data_metadata", "mappings"],
  "properties": {
    "config_metadata": {
      "type": "object",
      "properties": {
        "created_at": {"type": "string", "format": "date-time"},
        "author": {"type": "string"},
        "schema_id": {"type": "string"}
      }
    },
    "data_metadata": {
      "type": "object",
      "required": ["name", "type", "version", "attributes"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "type": {"enum": ["csv", "xlsx", "shapefile", "geojson"]},
        "version": {"type": "string", "minLength": 1},
        "attributes": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name", "type"],
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "units": {"type": "string"},
              "description": {"type": "string"},
              "type": {"enum": ["string", "integer", "number", "boolean", "date", "datetime", "geometry"]},
              "required": {"type": "boolean"}
            }
          }
        }
      }
    },
    "spatial_configuration": {
      "type": "object",
      "required": ["enabled"],
      "properties": {
        "enabled": {"type": "boolean"},
        "geometry_field": {"type": "string", "minLength": 1},
        "source_crs": {"type": "string", "pattern": "^EPSG:[0-9]+$"}
      }
    },
    "file_specific": {
      "type": "object",
      "properties": {
        "csv": {
          "type": "object",
          "properties": {
            "delimiter": {"type": "string", "minLength": 1, "maxLength": 1},
            "encoding": {"type": "string"},
            "header_row": {"type": "integer", "minimum": 0}
          }
        },
        "xlsx": {
          "type": "object",
          "properties": {
            "sheet": {"type": "string"},
            "header_row": {"type": "integer", "minimum": 0}
          }
        },
        "shapefile": {
          "type": "object",
          "properties": {
            "encoding": {"type": "string"},
            "layer_name": {"type": "string"},
            "filter_attributes": {"type": "array", "items": {"type": "string"}}
          }
        }
      }
    },
    "source_metadata": {
      "type": "object",
      "properties": {
        "reliability": {"type": "number", "minimum": 0, "maximum": 10},
        "recency": {"type": "number", "minimum": 0, "maximum": 10},
        "coverage": {"type": "number", "minimum": 0, "maximum": 10},
        "url": {"type": "string"}
      }
    },
    "derivations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["target_attribute", "inputs", "function"],
        "properties": {
          "target_attribute": {"type": "string", "minLength": 1},
          "inputs": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "function": {"enum": ["gor", "ratio"]}
        }
      }
    },
    "mappings": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["source_attribute", "target_attribute"],
        "properties": {
          "source_attribute": {"type": "string", "minLength": 1},
          "target_attribute": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var compiled = jsonschema.MustCompileString("mapping-config.schema.json", rawSchema)

// Validate checks a mapping-config document (JSON or YAML) against the
// schema contract and the canonical vocabulary, returning the typed config
// with defaults applied. Pure: no I/O, no mutation of shared state.
func Validate(doc []byte, reg *vocab.Registry) (*MappingConfig, error) {
	var generic any
	if err := yaml.Unmarshal(doc, &generic); err != nil {
		return nil, eris.Wrap(ErrViolation, "parse document: "+err.Error())
	}

	// Round-trip through encoding/json so the instance carries JSON types
	// regardless of the input syntax.
	normalized, err := json.Marshal(generic)
	if err != nil {
		return nil, eris.Wrap(ErrViolation, "normalize document: "+err.Error())
	}
	var instance any
	if err := json.Unmarshal(normalized, &instance); err != nil {
		return nil, eris.Wrap(ErrViolation, "normalize document: "+err.Error())
	}

	if err := compiled.Validate(instance); err != nil {
		return nil, eris.Wrap(ErrViolation, schemaErrorDetail(err))
	}

	var cfg MappingConfig
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return nil, eris.Wrap(ErrViolation, "decode config: "+err.Error())
	}
	cfg.applyDefaults()

	if err := checkMappings(&cfg, reg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// checkMappings enforces the constraints the JSON Schema cannot express:
// unique source attributes and vocabulary membership of every target. An
// unknown canonical target is an error, not a warning; it is the gate
// preventing downstream type confusion.
func checkMappings(cfg *MappingConfig, reg *vocab.Registry) error {
	seen := make(map[string]bool, len(cfg.Mappings))
	for _, m := range cfg.Mappings {
		if seen[m.SourceAttribute] {
			return eris.Wrapf(ErrViolation, "duplicate source_attribute %q", m.SourceAttribute)
		}
		seen[m.SourceAttribute] = true
		if !reg.Has(m.TargetAttribute) {
			return eris.Wrapf(ErrViolation, "target_attribute %q is not a canonical attribute", m.TargetAttribute)
		}
	}

	mapped := make(map[string]bool, len(cfg.Mappings))
	for _, m := range cfg.Mappings {
		mapped[m.TargetAttribute] = true
	}
	for _, d := range cfg.Derivations {
		attr := reg.ByName(d.TargetAttribute)
		if attr == nil {
			return eris.Wrapf(ErrViolation, "derivation target %q is not a canonical attribute", d.TargetAttribute)
		}
		if attr.Kind.String() != "number" && attr.Kind.String() != "integer" {
			return eris.Wrapf(ErrViolation, "derivation target %q is not numeric", d.TargetAttribute)
		}
		if mapped[d.TargetAttribute] {
			return eris.Wrapf(ErrViolation, "derivation target %q is already mapped", d.TargetAttribute)
		}
	}
	return nil
}

// schemaErrorDetail flattens a jsonschema validation error to its most
// specific cause line.
func schemaErrorDetail(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + leaf.Message
}
