package estimator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PricingFile is the YAML layout of a rate table override.
type PricingFile struct {
	Updated string          `yaml:"updated"`
	Rates   map[string]Rate `yaml:"rates"`
}

// LoadRates reads a YAML pricing file. Entries override DefaultRates; ids
// not mentioned keep their built-in price.
func LoadRates(path string) (map[string]Rate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file %s: %w", path, err)
	}

	rates, err := LoadRatesFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("pricing file %s: %w", path, err)
	}
	return rates, nil
}

// LoadRatesFromBytes parses YAML pricing data and merges it over DefaultRates.
func LoadRatesFromBytes(data []byte) (map[string]Rate, error) {
	var file PricingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pricing data: %w", err)
	}
	if len(file.Rates) == 0 {
		return nil, fmt.Errorf("no rates defined")
	}

	merged := make(map[string]Rate, len(DefaultRates)+len(file.Rates))
	for id, r := range DefaultRates {
		merged[id] = r
	}
	for id, r := range file.Rates {
		if r.InputPer1K < 0 || r.OutputPer1K < 0 {
			return nil, fmt.Errorf("rate %q: negative price", id)
		}
		merged[id] = r
	}
	return merged, nil
}
