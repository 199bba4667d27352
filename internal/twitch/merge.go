package twitch

import (
	"github.com/kethal/twitch-drops-go/internal/model"
)

// DeepMerge combines two JSON trees. For each key in the union: when both
// values are maps, recurse; otherwise the primary value wins. A shared key
// holding a map on one side and a non-map on the other is a fatal
// inconsistency between the two API responses.
func DeepMerge(primary, secondary map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(primary)+len(secondary))

	for key, value := range secondary {
		merged[key] = value
	}

	for key, primaryValue := range primary {
		secondaryValue, shared := merged[key]
		if !shared {
			merged[key] = primaryValue
			continue
		}

		primaryMap, primaryIsMap := primaryValue.(map[string]any)
		secondaryMap, secondaryIsMap := secondaryValue.(map[string]any)

		switch {
		case primaryIsMap && secondaryIsMap:
			sub, err := DeepMerge(primaryMap, secondaryMap)
			if err != nil {
				return nil, err
			}
			merged[key] = sub
		case primaryIsMap != secondaryIsMap && primaryValue != nil && secondaryValue != nil:
			return nil, model.Minerf("deep merge type mismatch at key %q", key)
		default:
			merged[key] = primaryValue
		}
	}

	return merged, nil
}
