package application

import (
	"math/rand"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
)

// Smart-mode delay tiers, inclusive second ranges.
var smartTiers = map[model.DelayLevel][2]int{
	model.DelayLevelLight:  {15, 20},
	model.DelayLevelMedium: {30, 60},
	model.DelayLevelHard:   {60, 180},
}

// DelaySettings configures the inter-item pause in mass and rotation mode.
type DelaySettings struct {
	Mode   model.DelayMode
	Level  model.DelayLevel
	MinSec int
	MaxSec int
}

// DelaySeconds samples the next inter-item delay in whole seconds. Smart mode
// draws from the configured tier; manual mode draws from [MinSec, MaxSec]
// clamped so that MinSec >= 1 and MaxSec >= MinSec. Both ranges are inclusive.
func DelaySeconds(s DelaySettings, rng *rand.Rand) int {
	min, max := s.MinSec, s.MaxSec
	if s.Mode == model.DelayModeSmart {
		tier, ok := smartTiers[s.Level]
		if !ok {
			tier = smartTiers[model.DelayLevelMedium]
		}
		min, max = tier[0], tier[1]
	}

	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}

	return min + rng.Intn(max-min+1)
}
