package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
)

func TestDefaultRegistryLookup(t *testing.T) {
	r := Default()

	depth := r.ByName("depth")
	require.NotNil(t, depth)
	assert.Equal(t, model.KindFloat, depth.Kind)
	assert.Equal(t, "ft", depth.Unit)
	assert.Equal(t, MergeAverage, depth.Merge)

	assert.True(t, r.Has("gor"))
	assert.False(t, r.Has("no_such_attribute"))
	assert.Nil(t, r.ByName("no_such_attribute"))
}

func TestDefaultRegistryIdentityAndCategorical(t *testing.T) {
	r := Default()

	assert.Equal(t, []string{"field_name"}, r.Identity())
	assert.ElementsMatch(t, []string{"country", "offshore"}, r.Categorical())
	assert.Empty(t, r.Required())
}

func TestDefaultRegistryCoversOPGEETable(t *testing.T) {
	r := Default()

	for _, name := range []string{
		"field_name", "country", "functional_unit", "downhole_pump",
		"water_reinjection", "natural_gas_reinjection", "water_flooding",
		"gas_lifting", "gas_flooding", "steam_flooding", "oil_sands_mine_type",
		"age", "depth", "oil_prod", "num_prod_wells", "num_water_inj_wells",
		"well_diam", "prod_index", "res_press", "res_temp", "offshore", "api",
		"gas_comp_n2", "gas_comp_co2", "gas_comp_c1", "gas_comp_c2",
		"gas_comp_c3", "gas_comp_c4", "gas_comp_h2s", "gor", "wor", "wir",
		"glir", "gfir", "flood_gas_type", "frac_co2_breakthrough", "co2_source",
		"perc_sequestration_credit", "sor", "fraction_elec_onsite",
		"fraction_remaining_gas_inj", "fraction_water_reinjected",
		"fraction_steam_cogen", "fraction_steam_solar", "heater_treater",
		"stabilizer_column", "upgrader_type", "gas_processing_path",
		"for_value", "frac_venting", "fraction_diluent", "ecosystem_richness",
		"field_development_intensity", "frac_transport_tanker",
		"frac_transport_barge", "frac_transport_pipeline",
		"frac_transport_rail", "frac_transport_truck",
		"transport_dist_tanker", "transport_dist_barge",
		"transport_dist_pipeline", "transport_dist_rail",
		"transport_dist_truck", "ocean_tanker_size", "small_sources_emissions",
	} {
		assert.True(t, r.Has(name), "missing attribute %s", name)
	}
}

func TestEnumValueCanonicalizes(t *testing.T) {
	fu := Default().ByName("functional_unit")
	require.NotNil(t, fu)

	v, ok := fu.EnumValue("OIL")
	assert.True(t, ok)
	assert.Equal(t, "oil", v)

	v, ok = fu.EnumValue(" gas ")
	assert.True(t, ok)
	assert.Equal(t, "gas", v)

	_, ok = fu.EnumValue("condensate")
	assert.False(t, ok)
}

func TestEnumValuePassthroughWithoutDomain(t *testing.T) {
	name := Default().ByName("field_name")
	require.NotNil(t, name)

	v, ok := name.EnumValue("Tupi")
	assert.True(t, ok)
	assert.Equal(t, "Tupi", v)
}

func TestAverageable(t *testing.T) {
	r := Default()

	assert.True(t, r.ByName("depth").Averageable())
	assert.True(t, r.ByName("num_prod_wells").Averageable())
	assert.True(t, r.ByName("api").Averageable())
	assert.True(t, r.ByName("age").Averageable())
	assert.False(t, r.ByName("field_name").Averageable())
	assert.False(t, r.ByName("offshore").Averageable())
}

func TestVolumeWeightedDeclaresWeightAttr(t *testing.T) {
	api := Default().ByName("api")
	require.NotNil(t, api)
	assert.Equal(t, MergeVolumeWeighted, api.Merge)
	assert.Equal(t, "oil_prod", api.WeightAttr)
}

func TestWithRequired(t *testing.T) {
	base := Default()
	r := base.WithRequired("oil_prod", "field_name", "not_an_attribute")

	assert.ElementsMatch(t, []string{"oil_prod", "field_name"}, r.Required())
	assert.True(t, r.ByName("oil_prod").Required)
	// The shared registry is untouched.
	assert.False(t, base.ByName("oil_prod").Required)
	assert.Empty(t, base.Required())
}

func TestRegistryNamesSorted(t *testing.T) {
	names := Default().Names()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}
