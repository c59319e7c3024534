package config

import "fmt"

// Validate checks the seeding parameters.
func (s SeedConfig) Validate() error {
	if s.UnavailableRatio < 0 || s.UnavailableRatio > 1 {
		return fmt.Errorf("seed: unavailable ratio must be within [0,1], got %v", s.UnavailableRatio)
	}
	if s.PriceMin <= 0 || s.PriceMin >= s.PriceMax {
		return fmt.Errorf("seed: price range [%d,%d) is empty or not positive", s.PriceMin, s.PriceMax)
	}
	return nil
}
