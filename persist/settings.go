package persist

import (
	"encoding/json"
	"fmt"
	"rodeo/strategy"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Settings are the user choices the CLI writes and the daemon reads.
type Settings struct {
	Strategy string `json:"strategy"`
	// Options holds per-strategy option maps keyed by strategy name
	Options map[string]map[string]any `json:"options,omitempty"`
	Server  string                    `json:"server,omitempty"`
	Paused  bool                      `json:"paused,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{Strategy: strategy.DefaultStrategy}
}

// StrategyOptions returns the option map of the selected strategy.
func (s Settings) StrategyOptions() map[string]any {
	return s.Options[s.Strategy]
}

// NewStrategy builds the selected strategy with its options.
func (s Settings) NewStrategy() (strategy.Strategy, error) {
	return strategy.New(s.Strategy, s.StrategyOptions())
}

const settingsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["strategy"],
  "additionalProperties": false,
  "properties": {
    "strategy": {"type": "string", "enum": ["aggressive", "conservative", "expected-value", "random", "underdog"]},
    "server": {"type": "string"},
    "paused": {"type": "boolean"},
    "options": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "bidMultiplier": {"type": "number", "minimum": 1},
          "maxOutbidFraction": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
          "simpleBid": {"type": "boolean"},
          "skipWhenBehind": {"type": "boolean"},
          "seed": {"type": "integer", "minimum": 0},
          "fruitBonus": {"type": "number", "exclusiveMinimum": 0},
          "distanceWeight": {"type": "number", "minimum": 0},
          "safetyWeight": {"type": "number", "minimum": 0},
          "centerWeight": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`

var settingsValidator = jsonschema.MustCompileString("settings.schema.json", settingsSchema)

// decodeSettings validates a settings document against the schema before decoding.
func decodeSettings(b []byte) (Settings, error) {
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := settingsValidator.Validate(doc); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// ValidateSettings checks s against the settings schema.
func ValidateSettings(s Settings) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = decodeSettings(b)
	return err
}
