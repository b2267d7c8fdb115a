/*
profiles.go - YAML overrides for the partner profile table

PURPOSE:
  Operators tune simulated partner behavior (success rates, latencies,
  expiry offsets) without a rebuild by pointing PARTNER_PROFILES_FILE at a
  YAML document:

    partners:
      - partner: ntuc
        expiry_days: 30
        success_rate: 0.95
        latency_ms: 500
      - partner: grab
        success_rate: 1.0   # force success for a demo

  Only listed fields override the built-in defaults for that partner.
*/
package voucher

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ecosteps/credit-engine/catalog"
)

type profileFile struct {
	Partners []profileOverride `yaml:"partners"`
}

type profileOverride struct {
	Partner     string   `yaml:"partner"`
	ExpiryDays  *int     `yaml:"expiry_days"`
	SuccessRate *float64 `yaml:"success_rate"`
	LatencyMS   *int     `yaml:"latency_ms"`
	QRCodeBase  *string  `yaml:"qr_code_base"`
}

// LoadProfileOverrides applies partner overrides from a YAML file onto the
// service's profile table. An override naming an unknown partner modifies
// the fallback profile.
func LoadProfileOverrides(s *Service, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read partner profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse partner profiles: %w", err)
	}

	for _, o := range file.Partners {
		prof := s.ProfileFor(catalog.Partner(o.Partner))
		if o.ExpiryDays != nil {
			prof.ExpiryDays = *o.ExpiryDays
		}
		if o.SuccessRate != nil {
			if *o.SuccessRate < 0 || *o.SuccessRate > 1 {
				return fmt.Errorf("partner %q: success_rate must be in [0, 1]", o.Partner)
			}
			prof.SuccessRate = *o.SuccessRate
		}
		if o.LatencyMS != nil {
			prof.Latency = time.Duration(*o.LatencyMS) * time.Millisecond
		}
		if o.QRCodeBase != nil {
			prof.QRCodeBase = *o.QRCodeBase
		}
		s.SetProfile(prof)
	}
	return nil
}
