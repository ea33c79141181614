package gamestate

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

var (
	nameAdjectives = []string{
		"amber", "brisk", "cobalt", "dusky", "ember", "frosty", "gilded", "hollow",
		"ivory", "jade", "keen", "lunar", "misty", "noble", "onyx", "proud",
		"quiet", "rusty", "silver", "tidal", "umber", "vivid", "wild", "zesty",
	}
	nameNouns = []string{
		"anvil", "badger", "comet", "delta", "falcon", "glacier", "harbor", "island",
		"jackal", "kestrel", "lantern", "meadow", "nebula", "orchid", "pylon", "quarry",
		"raven", "summit", "tundra", "vortex", "willow", "yonder", "zephyr", "colossus",
	}
)

// NameFunc generates an instance display name.
type NameFunc func() string

// RandomName returns names like "cobalt-falcon-3f9a1c2e". The uuid suffix
// makes consecutive names distinct in practice.
func RandomName() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return nameAdjectives[rand.IntN(len(nameAdjectives))] + "-" +
		nameNouns[rand.IntN(len(nameNouns))] + "-" + suffix
}
