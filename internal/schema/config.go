// Package schema validates mapping-configuration documents and loads them
// into typed form. A config describes one source: file parsing options,
// spatial settings, and the source-to-canonical attribute mappings.
package schema

import (
	"time"
)

// Source file types the readers understand.
const (
	TypeCSV       = "csv"
	TypeXLSX      = "xlsx"
	TypeShapefile = "shapefile"
	TypeGeoJSON   = "geojson"
)

// ConfigMetadata describes the configuration document itself.
type ConfigMetadata struct {
	CreatedAt *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Author    string     `json:"author,omitempty" yaml:"author,omitempty"`
	SchemaID  string     `json:"schema_id,omitempty" yaml:"schema_id,omitempty"`
}

// AttributeMeta declares one source attribute: its name, the unit the source
// reports it in, and its declared type. Required escalates the mapped
// canonical attribute to required for this source.
type AttributeMeta struct {
	Name        string `json:"name" yaml:"name"`
	Units       string `json:"units,omitempty" yaml:"units,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string `json:"type" yaml:"type"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// DataMetadata describes the source dataset.
type DataMetadata struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string          `json:"type" yaml:"type"`
	Version     string          `json:"version" yaml:"version"`
	Attributes  []AttributeMeta `json:"attributes" yaml:"attributes"`
}

// SpatialConfiguration controls geometry handling. When the block is absent
// from a config the source is treated as non-spatial.
type SpatialConfiguration struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	GeometryField string `json:"geometry_field,omitempty" yaml:"geometry_field,omitempty"`
	SourceCRS     string `json:"source_crs,omitempty" yaml:"source_crs,omitempty"`
}

// CSVOptions holds CSV parsing options. HeaderRow is 0-based.
type CSVOptions struct {
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	Encoding  string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	HeaderRow int    `json:"header_row,omitempty" yaml:"header_row,omitempty"`
}

// XLSXOptions holds workbook parsing options. An empty Sheet selects the
// first sheet.
type XLSXOptions struct {
	Sheet     string `json:"sheet,omitempty" yaml:"sheet,omitempty"`
	HeaderRow int    `json:"header_row,omitempty" yaml:"header_row,omitempty"`
}

// ShapefileOptions holds shapefile parsing options. FilterAttributes, when
// non-empty, limits which DBF attributes are read.
type ShapefileOptions struct {
	Encoding         string   `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	LayerName        string   `json:"layer_name,omitempty" yaml:"layer_name,omitempty"`
	FilterAttributes []string `json:"filter_attributes,omitempty" yaml:"filter_attributes,omitempty"`
}

// FileSpecific groups per-format parsing options.
type FileSpecific struct {
	CSV       *CSVOptions       `json:"csv,omitempty" yaml:"csv,omitempty"`
	XLSX      *XLSXOptions      `json:"xlsx,omitempty" yaml:"xlsx,omitempty"`
	Shapefile *ShapefileOptions `json:"shapefile,omitempty" yaml:"shapefile,omitempty"`
}

// Mapping pairs one source attribute with its canonical target.
type Mapping struct {
	SourceAttribute string `json:"source_attribute" yaml:"source_attribute"`
	TargetAttribute string `json:"target_attribute" yaml:"target_attribute"`
}

// Derivation computes a canonical attribute from multiple source columns,
// for targets no single column carries (a GOR from separate gas and oil
// volumes). Derivations apply only when the target is not directly mapped.
type Derivation struct {
	TargetAttribute string   `json:"target_attribute" yaml:"target_attribute"`
	Inputs          []string `json:"inputs" yaml:"inputs"`
	Function        string   `json:"function" yaml:"function"`
}

// SourceMetadata scores a source for merge precedence. Each component is
// 0-10; the combined data score weighs reliability 0.5, recency 0.3,
// coverage 0.2.
type SourceMetadata struct {
	Reliability float64 `json:"reliability" yaml:"reliability"`
	Recency     float64 `json:"recency" yaml:"recency"`
	Coverage    float64 `json:"coverage" yaml:"coverage"`
	URL         string  `json:"url,omitempty" yaml:"url,omitempty"`
}

// DataScore returns the weighted source quality score.
func (s *SourceMetadata) DataScore() float64 {
	return 0.5*s.Reliability + 0.3*s.Recency + 0.2*s.Coverage
}

// MappingConfig is one validated source configuration. Authored per data
// source, versioned, loaded read-only at run start.
type MappingConfig struct {
	ConfigMetadata       *ConfigMetadata       `json:"config_metadata,omitempty" yaml:"config_metadata,omitempty"`
	DataMetadata         DataMetadata          `json:"data_metadata" yaml:"data_metadata"`
	SpatialConfiguration *SpatialConfiguration `json:"spatial_configuration,omitempty" yaml:"spatial_configuration,omitempty"`
	FileSpecific         *FileSpecific         `json:"file_specific,omitempty" yaml:"file_specific,omitempty"`
	SourceMetadata       *SourceMetadata       `json:"source_metadata,omitempty" yaml:"source_metadata,omitempty"`
	Derivations          []Derivation          `json:"derivations,omitempty" yaml:"derivations,omitempty"`
	Mappings             []Mapping             `json:"mappings" yaml:"mappings"`
}

// applyDefaults fills the documented defaults after unmarshaling.
func (c *MappingConfig) applyDefaults() {
	if c.SpatialConfiguration != nil {
		if c.SpatialConfiguration.GeometryField == "" {
			c.SpatialConfiguration.GeometryField = "geometry"
		}
		if c.SpatialConfiguration.SourceCRS == "" {
			c.SpatialConfiguration.SourceCRS = "EPSG:4326"
		}
	}
	if c.FileSpecific == nil {
		c.FileSpecific = &FileSpecific{}
	}
	if c.DataMetadata.Type == TypeCSV && c.FileSpecific.CSV == nil {
		c.FileSpecific.CSV = &CSVOptions{}
	}
	if c.FileSpecific.CSV != nil {
		if c.FileSpecific.CSV.Delimiter == "" {
			c.FileSpecific.CSV.Delimiter = ","
		}
		if c.FileSpecific.CSV.Encoding == "" {
			c.FileSpecific.CSV.Encoding = "utf-8"
		}
	}
	if c.DataMetadata.Type == TypeXLSX && c.FileSpecific.XLSX == nil {
		c.FileSpecific.XLSX = &XLSXOptions{}
	}
	if c.DataMetadata.Type == TypeShapefile && c.FileSpecific.Shapefile == nil {
		c.FileSpecific.Shapefile = &ShapefileOptions{}
	}
	if c.FileSpecific.Shapefile != nil {
		if c.FileSpecific.Shapefile.Encoding == "" {
			c.FileSpecific.Shapefile.Encoding = "utf-8"
		}
		if c.FileSpecific.Shapefile.LayerName == "" {
			c.FileSpecific.Shapefile.LayerName = "0"
		}
	}
}

// Spatial reports whether spatial processing is enabled.
func (c *MappingConfig) Spatial() bool {
	return c.SpatialConfiguration != nil && c.SpatialConfiguration.Enabled
}

// GeometryField returns the configured geometry column, "geometry" when
// spatial processing is disabled.
func (c *MappingConfig) GeometryField() string {
	if c.SpatialConfiguration == nil || c.SpatialConfiguration.GeometryField == "" {
		return "geometry"
	}
	return c.SpatialConfiguration.GeometryField
}

// SourceCRS returns the configured source CRS, EPSG:4326 by default.
func (c *MappingConfig) SourceCRS() string {
	if c.SpatialConfiguration == nil || c.SpatialConfiguration.SourceCRS == "" {
		return "EPSG:4326"
	}
	return c.SpatialConfiguration.SourceCRS
}

// AttributeMapping returns source attribute -> target attribute.
func (c *MappingConfig) AttributeMapping() map[string]string {
	m := make(map[string]string, len(c.Mappings))
	for _, mp := range c.Mappings {
		m[mp.SourceAttribute] = mp.TargetAttribute
	}
	return m
}

// SourceAttributeMeta returns source attribute name -> declared metadata.
func (c *MappingConfig) SourceAttributeMeta() map[string]*AttributeMeta {
	m := make(map[string]*AttributeMeta, len(c.DataMetadata.Attributes))
	for i := range c.DataMetadata.Attributes {
		a := &c.DataMetadata.Attributes[i]
		m[a.Name] = a
	}
	return m
}

// RequiredTargets returns canonical attributes this source marks required:
// the mapped targets of source attributes declared required.
func (c *MappingConfig) RequiredTargets() []string {
	meta := c.SourceAttributeMeta()
	var out []string
	for _, mp := range c.Mappings {
		if a, ok := meta[mp.SourceAttribute]; ok && a.Required {
			out = append(out, mp.TargetAttribute)
		}
	}
	return out
}

// DataScore returns the source quality score, 0 when unscored.
func (c *MappingConfig) DataScore() float64 {
	if c.SourceMetadata == nil {
		return 0
	}
	return c.SourceMetadata.DataScore()
}
