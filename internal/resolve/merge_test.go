package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	geom "github.com/twpayne/go-geom"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

func memberRecord(source string, row int, attrs map[string]model.Value) *model.CanonicalRecord {
	return &model.CanonicalRecord{
		Provenance: model.Provenance{Source: source, Version: "1", Row: row},
		Attrs:      attrs,
	}
}

func TestMergeEmpty(t *testing.T) {
	m := NewMerger(vocab.Default())
	assert.Nil(t, m.Merge(nil))
}

func TestMergeFirstTakesPrecedenceOrder(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("primary", 0, map[string]model.Value{"field_name": model.StringValue("Safaniya")}),
		memberRecord("secondary", 0, map[string]model.Value{"field_name": model.StringValue("As-Saffaniyah")}),
	})
	require.NotNil(t, merged)

	name, _ := merged.Attr("field_name").AsString()
	assert.Equal(t, "Safaniya", name)
	assert.Equal(t, "primary", merged.Provenance.Source)
}

func TestMergeFirstSkipsAbsentMembers(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("primary", 0, nil),
		memberRecord("secondary", 0, map[string]model.Value{"field_name": model.StringValue("Marlim")}),
	})
	name, _ := merged.Attr("field_name").AsString()
	assert.Equal(t, "Marlim", name)
}

func TestMergeAverage(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("a", 0, map[string]model.Value{"depth": model.FloatValue(5000)}),
		memberRecord("b", 0, map[string]model.Value{"depth": model.FloatValue(6000)}),
		memberRecord("c", 0, nil),
	})
	depth, ok := merged.Attr("depth").AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 5500.0, depth, 1e-9)
}

func TestMergeMedianInt(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("a", 0, map[string]model.Value{"num_prod_wells": model.IntValue(10)}),
		memberRecord("b", 0, map[string]model.Value{"num_prod_wells": model.IntValue(31)}),
		memberRecord("c", 0, map[string]model.Value{"num_prod_wells": model.IntValue(20)}),
	})
	wells, ok := merged.Attr("num_prod_wells").AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(20), wells)

	// Even count truncates the midpoint mean.
	merged = m.Merge([]*model.CanonicalRecord{
		memberRecord("a", 0, map[string]model.Value{"num_prod_wells": model.IntValue(10)}),
		memberRecord("b", 0, map[string]model.Value{"num_prod_wells": model.IntValue(15)}),
	})
	wells, _ = merged.Attr("num_prod_wells").AsInt()
	assert.Equal(t, int64(12), wells)
}

func TestMergeMostFrequent(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("a", 0, map[string]model.Value{"country": model.StringValue("Brazil")}),
		memberRecord("b", 0, map[string]model.Value{"country": model.StringValue("Saudi Arabia")}),
		memberRecord("c", 0, map[string]model.Value{"country": model.StringValue("Saudi Arabia")}),
	})
	country, _ := merged.Attr("country").AsString()
	assert.Equal(t, "Saudi Arabia", country)
}

func TestMergeMostFrequentTieFirstSeenWins(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("a", 0, map[string]model.Value{"country": model.StringValue("Brazil")}),
		memberRecord("b", 0, map[string]model.Value{"country": model.StringValue("Saudi Arabia")}),
	})
	country, _ := merged.Attr("country").AsString()
	assert.Equal(t, "Brazil", country)
}

func TestMergeAvgAge(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("a", 0, map[string]model.Value{"age": model.FloatValue(2000)}),
		memberRecord("b", 0, map[string]model.Value{"age": model.FloatValue(2010)}),
	})
	age, ok := merged.Attr("age").AsFloat()
	require.True(t, ok)
	assert.InDelta(t, float64(time.Now().UTC().Year())-2005, age, 1e-9)
}

func TestMergeVolumeWeighted(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("a", 0, map[string]model.Value{
			"api":      model.FloatValue(30),
			"oil_prod": model.FloatValue(100),
		}),
		memberRecord("b", 0, map[string]model.Value{
			"api":      model.FloatValue(40),
			"oil_prod": model.FloatValue(300),
		}),
	})
	api, ok := merged.Attr("api").AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 37.5, api, 1e-9)
}

func TestMergeVolumeWeightedFallsBackToMean(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("a", 0, map[string]model.Value{"api": model.FloatValue(30)}),
		memberRecord("b", 0, map[string]model.Value{"api": model.FloatValue(40)}),
	})
	api, ok := merged.Attr("api").AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 35.0, api, 1e-9)
}

func TestMergeDissolvesGeometryToCentroid(t *testing.T) {
	m := NewMerger(vocab.Default())

	a := memberRecord("a", 0, nil)
	a.Geometry = geom.NewPointFlat(geom.XY, []float64{10, 20})
	b := memberRecord("b", 0, nil)
	b.Geometry = geom.NewPointFlat(geom.XY, []float64{12, 22})
	c := memberRecord("c", 0, nil) // unlocated member ignored

	merged := m.Merge([]*model.CanonicalRecord{a, b, c})
	require.NotNil(t, merged.Geometry)
	assert.False(t, merged.Unlocated)

	pt, ok := merged.Geometry.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 11.0, pt.X(), 1e-9)
	assert.InDelta(t, 21.0, pt.Y(), 1e-9)
}

func TestMergeAllUnlocated(t *testing.T) {
	m := NewMerger(vocab.Default())

	merged := m.Merge([]*model.CanonicalRecord{
		memberRecord("a", 0, nil),
		memberRecord("b", 0, nil),
	})
	assert.Nil(t, merged.Geometry)
	assert.True(t, merged.Unlocated)
}
