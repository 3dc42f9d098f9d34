// Package mapper applies a source's attribute mappings, producing canonical
// records with typed values in canonical units. Rejections are record-level
// and recoverable; a batch never aborts on a bad record.
package mapper

import (
	"github.com/rotisserie/eris"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/proj"
	"github.com/pyxis-energy/pyxis-cli/internal/schema"
	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

// ErrMapping marks a rejected record. The wrap message carries the reason
// counted in the run report.
var ErrMapping = eris.New("mapper: record rejected")

type binding struct {
	source string
	attr   *vocab.Attribute
	units  string
}

// Mapper maps raw records of one source onto the canonical vocabulary.
type Mapper struct {
	cfg      *schema.MappingConfig
	reg      *vocab.Registry
	bindings []binding
	spatial  bool
	crs      string
}

// New precomputes the source's attribute bindings. The registry is
// escalated with the targets this source declares required, so a required
// coercion failure rejects the whole record.
func New(cfg *schema.MappingConfig, reg *vocab.Registry) (*Mapper, error) {
	if req := cfg.RequiredTargets(); len(req) > 0 {
		reg = reg.WithRequired(req...)
	}

	meta := cfg.SourceAttributeMeta()
	bindings := make([]binding, 0, len(cfg.Mappings))
	for _, mp := range cfg.Mappings {
		attr := reg.ByName(mp.TargetAttribute)
		if attr == nil {
			return nil, eris.Errorf("mapper: unknown canonical attribute %q", mp.TargetAttribute)
		}
		b := binding{source: mp.SourceAttribute, attr: attr}
		if am, ok := meta[mp.SourceAttribute]; ok {
			b.units = am.Units
		}
		bindings = append(bindings, b)
	}

	m := &Mapper{
		cfg:      cfg,
		reg:      reg,
		bindings: bindings,
		spatial:  cfg.Spatial(),
		crs:      cfg.SourceCRS(),
	}
	if m.spatial && !proj.Supported(m.crs) {
		return nil, eris.Errorf("mapper: unsupported source CRS %q", m.crs)
	}
	return m, nil
}

// Registry returns the vocabulary this mapper coerces into, required
// escalations included.
func (m *Mapper) Registry() *vocab.Registry { return m.reg }

// Map converts one raw record. A returned error is always ErrMapping; the
// record is rejected and the caller counts it.
func (m *Mapper) Map(raw model.RawRecord) (*model.CanonicalRecord, error) {
	rec := &model.CanonicalRecord{
		Provenance: model.Provenance{
			Source:  m.cfg.DataMetadata.Name,
			Version: m.cfg.DataMetadata.Version,
			Row:     raw.Index,
		},
		Attrs: make(map[string]model.Value),
	}

	for _, b := range m.bindings {
		rv, ok := raw.Values[b.source]
		if !ok || rv.IsNull() {
			if b.attr.Required {
				return nil, eris.Wrapf(ErrMapping, "required attribute %s missing", b.attr.Name)
			}
			continue
		}

		v, err := coerce(rv, b.attr, b.units)
		if err != nil {
			// A single bad attribute drops; a bad required attribute
			// rejects the record.
			if b.attr.Required {
				return nil, eris.Wrapf(ErrMapping, "required attribute %s: %v", b.attr.Name, err)
			}
			continue
		}
		rec.SetAttr(b.attr.Name, v)
	}

	if err := m.derive(raw, rec); err != nil {
		return nil, err
	}

	if m.spatial && raw.Geometry != nil {
		g, err := proj.ToWGS84(raw.Geometry, m.crs)
		if err != nil {
			return nil, eris.Wrapf(ErrMapping, "reproject geometry: %v", err)
		}
		rec.Geometry = g
	}

	for _, name := range m.reg.Required() {
		if rec.Attr(name).IsNull() {
			return nil, eris.Wrapf(ErrMapping, "required attribute %s missing", name)
		}
	}

	return rec, nil
}

// derive fills derivation targets from source columns. A derivation never
// overwrites a mapped value and a failed derivation only drops the target.
func (m *Mapper) derive(raw model.RawRecord, rec *model.CanonicalRecord) error {
	for _, d := range m.cfg.Derivations {
		if !rec.Attr(d.TargetAttribute).IsNull() {
			continue
		}

		inputs := make([]float64, 0, len(d.Inputs))
		ok := true
		for _, col := range d.Inputs {
			v, present := raw.Values[col]
			if !present || v.IsNull() {
				ok = false
				break
			}
			f, err := parseFloat(v)
			if err != nil {
				ok = false
				break
			}
			inputs = append(inputs, f)
		}
		if !ok {
			continue
		}

		var out float64
		switch d.Function {
		case "gor":
			// Gas volume in MMscf/d over oil volume in kbbl/d reduces to
			// scf/bbl with a factor of 10^6 / 10^3 * 6 handled upstream as
			// the conventional 6000 scf/bbl scaling.
			if len(inputs) != 2 || inputs[1] == 0 {
				continue
			}
			out = inputs[0] * 6000 / inputs[1]
		case "ratio":
			if len(inputs) != 2 || inputs[1] == 0 {
				continue
			}
			out = inputs[0] / inputs[1]
		default:
			return eris.Wrapf(ErrMapping, "unknown derivation function %q", d.Function)
		}
		rec.SetAttr(d.TargetAttribute, model.FloatValue(out))
	}
	return nil
}
