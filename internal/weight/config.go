package weight

// Config holds the twelve weight-engine knobs. A balancerd deployment
// overrides the defaults from its YAML config file (`weight` section).
type Config struct {
	MinFreeSpaceKB             float64 `yaml:"min_free_space_kb"`
	MinFreeSpaceRelative       float64 `yaml:"min_free_space_relative"`
	MinUnitsWithPositiveWeight int     `yaml:"min_units_with_positive_weight"`
	AdditionalUnitsNumber      int     `yaml:"additional_units_number"`
	AdditionalUnitsPercentage  float64 `yaml:"additional_units_percentage"`
	AdditionalRPSNumber        float64 `yaml:"additional_rps_number"`
	AdditionalRPSPercentage    float64 `yaml:"additional_rps_percentage"`
	TailHeightPercentage       float64 `yaml:"tail_height_percentage"`
	TailHeightSpaceKB          float64 `yaml:"tail_height_space_kb"`
	WeightMultiplierHead       float64 `yaml:"weight_multiplier_head"`
	WeightMultiplierTail       float64 `yaml:"weight_multiplier_tail"`
	MinWeight                  float64 `yaml:"min_weight"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		MinFreeSpaceKB:             256 * 1024,
		MinFreeSpaceRelative:       0.15,
		MinUnitsWithPositiveWeight: 1,
		AdditionalUnitsNumber:      1,
		AdditionalUnitsPercentage:  0.10,
		AdditionalRPSNumber:        20,
		AdditionalRPSPercentage:    0.15,
		TailHeightPercentage:       0.95,
		TailHeightSpaceKB:          500 * 1024,
		WeightMultiplierHead:       1_000_000,
		WeightMultiplierTail:       600_000,
		MinWeight:                  10_000,
	}
}
