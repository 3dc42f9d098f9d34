package vocab

import "github.com/pyxis-energy/pyxis-cli/internal/model"

// Enum domains for option-valued attributes.
var (
	FunctionalUnits   = []string{"oil", "gas"}
	OilSandsMineTypes = []string{"None", "Integrated with upgrader", "Integrated with diluent", "Integrated with both"}
	FloodGasTypes     = []string{"NG", "N2", "CO2"}
	CO2Sources        = []string{"Natural subsurface reservoir", "Anthropogenic"}
	UpgraderTypes     = []string{"None", "Delayed coking", "Hydroconversion", "Combined"}
	GasProcessingPaths = []string{
		"None", "Minimal", "Acid Gas", "Wet Gas", "Acid Wet Gas",
		"Sour Gas Reinjection", "CO2-EOR Membrane", "CO2-EOR Ryan Holmes",
	}
	EcosystemRichnessLevels      = []string{"Low carbon", "Med carbon", "High carbon"}
	FieldDevelopmentIntensities  = []string{"Low", "Med", "High"}
)

// opgeeAttributes is the OPGEE canonical attribute table. Canonical units:
// depths in ft, production in bbl/d, ratios in scf/bbl or bbl/bbl, gas
// composition in percent, fractions 0-1, distances in mi, pressure in psi,
// temperature in degF. The age attribute receives commissioning/discovery
// years from sources; MergeAvgAge converts to years elapsed at merge time.
var opgeeAttributes = []Attribute{
	{Name: "field_name", Kind: model.KindString, Identity: true, Merge: MergeFirst},
	{Name: "country", Kind: model.KindString, Categorical: true, Merge: MergeMostFrequent},

	{Name: "functional_unit", Kind: model.KindString, Enum: FunctionalUnits, Merge: MergeMostFrequent},

	{Name: "downhole_pump", Kind: model.KindBool, Merge: MergeMostFrequent},
	{Name: "water_reinjection", Kind: model.KindBool, Merge: MergeMostFrequent},
	{Name: "natural_gas_reinjection", Kind: model.KindBool, Merge: MergeMostFrequent},
	{Name: "water_flooding", Kind: model.KindBool, Merge: MergeMostFrequent},
	{Name: "gas_lifting", Kind: model.KindBool, Merge: MergeMostFrequent},
	{Name: "gas_flooding", Kind: model.KindBool, Merge: MergeMostFrequent},
	{Name: "steam_flooding", Kind: model.KindBool, Merge: MergeMostFrequent},
	{Name: "oil_sands_mine_type", Kind: model.KindString, Enum: OilSandsMineTypes, Merge: MergeMostFrequent},

	{Name: "age", Kind: model.KindFloat, Unit: "yr", Merge: MergeAvgAge},
	{Name: "depth", Kind: model.KindFloat, Unit: "ft", Merge: MergeAverage},
	{Name: "oil_prod", Kind: model.KindFloat, Unit: "bbl/d", Merge: MergeAverage},
	{Name: "num_prod_wells", Kind: model.KindInt, Merge: MergeMedianInt},
	{Name: "num_water_inj_wells", Kind: model.KindInt, Merge: MergeMedianInt},
	{Name: "well_diam", Kind: model.KindFloat, Unit: "in", Merge: MergeAverage},
	{Name: "prod_index", Kind: model.KindFloat, Unit: "bbl/(psi*d)", Merge: MergeAverage},
	{Name: "res_press", Kind: model.KindFloat, Unit: "psi", Merge: MergeAverage},
	{Name: "res_temp", Kind: model.KindFloat, Unit: "degF", Merge: MergeAverage},
	{Name: "offshore", Kind: model.KindBool, Categorical: true, Merge: MergeMostFrequent},

	{Name: "api", Kind: model.KindFloat, Unit: "API", Merge: MergeVolumeWeighted, WeightAttr: "oil_prod"},
	{Name: "gas_comp_n2", Kind: model.KindFloat, Unit: "%", Merge: MergeAverage},
	{Name: "gas_comp_co2", Kind: model.KindFloat, Unit: "%", Merge: MergeAverage},
	{Name: "gas_comp_c1", Kind: model.KindFloat, Unit: "%", Merge: MergeAverage},
	{Name: "gas_comp_c2", Kind: model.KindFloat, Unit: "%", Merge: MergeAverage},
	{Name: "gas_comp_c3", Kind: model.KindFloat, Unit: "%", Merge: MergeAverage},
	{Name: "gas_comp_c4", Kind: model.KindFloat, Unit: "%", Merge: MergeAverage},
	{Name: "gas_comp_h2s", Kind: model.KindFloat, Unit: "%", Merge: MergeAverage},

	{Name: "gor", Kind: model.KindFloat, Unit: "scf/bbl", Merge: MergeAverage},
	{Name: "wor", Kind: model.KindFloat, Unit: "bbl/bbl", Merge: MergeAverage},
	{Name: "wir", Kind: model.KindFloat, Unit: "bbl/bbl", Merge: MergeAverage},
	{Name: "glir", Kind: model.KindFloat, Unit: "scf/bbl", Merge: MergeAverage},
	{Name: "gfir", Kind: model.KindFloat, Unit: "scf/bbl", Merge: MergeAverage},
	{Name: "flood_gas_type", Kind: model.KindString, Enum: FloodGasTypes, Merge: MergeMostFrequent},
	{Name: "frac_co2_breakthrough", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "co2_source", Kind: model.KindString, Enum: CO2Sources, Merge: MergeMostFrequent},
	{Name: "perc_sequestration_credit", Kind: model.KindFloat, Unit: "%", Merge: MergeAverage},
	{Name: "sor", Kind: model.KindFloat, Unit: "bbl/bbl", Merge: MergeAverage},

	{Name: "fraction_elec_onsite", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "fraction_remaining_gas_inj", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "fraction_water_reinjected", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "fraction_steam_cogen", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "fraction_steam_solar", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "heater_treater", Kind: model.KindBool, Merge: MergeMostFrequent},
	{Name: "stabilizer_column", Kind: model.KindBool, Merge: MergeMostFrequent},
	{Name: "upgrader_type", Kind: model.KindString, Enum: UpgraderTypes, Merge: MergeMostFrequent},
	{Name: "gas_processing_path", Kind: model.KindString, Enum: GasProcessingPaths, Merge: MergeMostFrequent},
	{Name: "for_value", Kind: model.KindFloat, Unit: "scf/bbl", Merge: MergeAverage},
	{Name: "frac_venting", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "fraction_diluent", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},

	{Name: "ecosystem_richness", Kind: model.KindString, Enum: EcosystemRichnessLevels, Merge: MergeMostFrequent},
	{Name: "field_development_intensity", Kind: model.KindString, Enum: FieldDevelopmentIntensities, Merge: MergeMostFrequent},

	{Name: "frac_transport_tanker", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "frac_transport_barge", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "frac_transport_pipeline", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "frac_transport_rail", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "frac_transport_truck", Kind: model.KindFloat, Unit: "frac", Merge: MergeAverage},
	{Name: "transport_dist_tanker", Kind: model.KindFloat, Unit: "mi", Merge: MergeAverage},
	{Name: "transport_dist_barge", Kind: model.KindFloat, Unit: "mi", Merge: MergeAverage},
	{Name: "transport_dist_pipeline", Kind: model.KindFloat, Unit: "mi", Merge: MergeAverage},
	{Name: "transport_dist_rail", Kind: model.KindFloat, Unit: "mi", Merge: MergeAverage},
	{Name: "transport_dist_truck", Kind: model.KindFloat, Unit: "mi", Merge: MergeAverage},
	{Name: "ocean_tanker_size", Kind: model.KindFloat, Unit: "t", Merge: MergeAverage},

	{Name: "small_sources_emissions", Kind: model.KindFloat, Merge: MergeAverage},
}

var std = New(opgeeAttributes)

// Default returns the shared OPGEE registry.
func Default() *Registry { return std }
