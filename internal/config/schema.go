package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/iwell/incentive-engine/internal/model"
)

// documentSchema is the structural contract every ConfigDocument must satisfy
// before a run will touch it. Semantic checks (band contiguity, ordering)
// happen separately in validateSemantics.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["scorer", "schema_version", "options", "rate_slabs", "meeting_slabs", "weights", "category_rules", "penalty"],
  "properties": {
    "scorer": {"type": "string", "minLength": 1},
    "schema_version": {"type": "string", "minLength": 1},
    "status": {"type": "string"},
    "options": {
      "type": "object",
      "required": ["range_mode", "fy_mode", "audit_mode"],
      "properties": {
        "range_mode": {"enum": ["month", "last5", "fy"]},
        "fy_mode": {"enum": ["FY_APR", "CAL"]},
        "audit_mode": {"enum": ["compact", "full"]},
        "inactivity_grace_months": {"type": "integer", "minimum": 0},
        "inactive_action": {"enum": ["skip", "mark_ineligible"]},
        "annual_trail_rate_pct": {"type": "number", "minimum": 0}
      }
    },
    "rate_slabs": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["min_pct", "rate"],
        "properties": {
          "min_pct": {"type": "number"},
          "max_pct": {"type": ["number", "null"]},
          "rate": {"type": "number"},
          "label": {"type": "string"}
        }
      }
    },
    "meeting_slabs": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["min_count", "mult"],
        "properties": {
          "min_count": {"type": "integer", "minimum": 0},
          "max_count": {"type": ["integer", "null"]},
          "mult": {"type": "number", "minimum": 0},
          "label": {"type": "string"}
        }
      }
    },
    "weights": {
      "type": "object",
      "required": ["purchase", "redemption", "switch_in", "switch_out", "cob_in", "cob_out"],
      "properties": {
        "purchase": {"type": "number", "minimum": 0},
        "redemption": {"type": "number", "minimum": 0},
        "switch_in": {"type": "number", "minimum": 0},
        "switch_out": {"type": "number", "minimum": 0},
        "cob_in": {"type": "number", "minimum": 0},
        "cob_out": {"type": "number", "minimum": 0}
      }
    },
    "category_rules": {
      "type": "object",
      "properties": {
        "blacklisted_categories": {"type": ["array", "null"], "items": {"type": "string"}},
        "match_mode": {"enum": ["substring", "exact"]},
        "scope": {"type": "array", "items": {"enum": ["category", "sub_category"]}}
      }
    },
    "penalty": {
      "type": "object",
      "required": ["enable", "mode", "slabs"],
      "properties": {
        "enable": {"type": "boolean"},
        "mode": {"enum": ["flat", "trail_scaled"]},
        "slabs": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["max_growth_pct"],
            "properties": {
              "max_growth_pct": {"type": "number"},
              "flat_points": {"type": "number", "minimum": 0},
              "trail_pct": {"type": "number", "minimum": 0},
              "cap_points": {"type": "number", "minimum": 0}
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("config-document.json", documentSchema)

// Validate runs both structural (jsonschema) and semantic checks on a config
// document. Any failure means the document is rejected whole; the caller must
// not coerce or partially apply it.
func Validate(doc *model.ConfigDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal for validation: %w", err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("unmarshal for validation: %w", err)
	}
	if err := compiledSchema.Validate(payload); err != nil {
		return fmt.Errorf("structural validation: %w", err)
	}
	return validateSemantics(doc)
}

// validateSemantics enforces the slab contract: bands ordered and contiguous
// over their domain, with exactly one unbounded top band, plus penalty slabs
// strictly ascending.
func validateSemantics(doc *model.ConfigDocument) error {
	if err := checkRateSlabs(doc.RateSlabs); err != nil {
		return fmt.Errorf("rate_slabs: %w", err)
	}
	if err := checkMeetingSlabs(doc.MeetingSlabs); err != nil {
		return fmt.Errorf("meeting_slabs: %w", err)
	}
	if err := checkPenaltySlabs(doc.Penalty.Slabs); err != nil {
		return fmt.Errorf("penalty.slabs: %w", err)
	}
	if mode := doc.CategoryRules.MatchMode; mode != "" && mode != "substring" && mode != "exact" {
		return fmt.Errorf("category_rules.match_mode: unknown mode %q", mode)
	}
	return nil
}

func checkRateSlabs(slabs []model.RateSlab) error {
	if len(slabs) == 0 {
		return fmt.Errorf("empty")
	}
	for i, s := range slabs {
		last := i == len(slabs)-1
		if last {
			if s.Max != nil {
				return fmt.Errorf("final band must be unbounded (max_pct=null)")
			}
			continue
		}
		if s.Max == nil {
			return fmt.Errorf("band %d: only the final band may be unbounded", i)
		}
		if *s.Max <= s.Min {
			return fmt.Errorf("band %d: max %v <= min %v", i, *s.Max, s.Min)
		}
		if next := slabs[i+1]; next.Min != *s.Max {
			return fmt.Errorf("band %d: gap or overlap at %v (next min %v)", i, *s.Max, next.Min)
		}
	}
	return nil
}

func checkMeetingSlabs(slabs []model.MeetingSlab) error {
	if len(slabs) == 0 {
		return fmt.Errorf("empty")
	}
	for i, s := range slabs {
		last := i == len(slabs)-1
		if last {
			if s.Max != nil {
				return fmt.Errorf("final band must be unbounded (max_count=null)")
			}
			continue
		}
		if s.Max == nil {
			return fmt.Errorf("band %d: only the final band may be unbounded", i)
		}
		if *s.Max <= s.Min {
			return fmt.Errorf("band %d: max %v <= min %v", i, *s.Max, s.Min)
		}
		if next := slabs[i+1]; next.Min != *s.Max {
			return fmt.Errorf("band %d: gap or overlap at %v (next min %v)", i, *s.Max, next.Min)
		}
	}
	return nil
}

func checkPenaltySlabs(slabs []model.PenaltySlab) error {
	for i := 1; i < len(slabs); i++ {
		if slabs[i].MaxGrowthPct <= slabs[i-1].MaxGrowthPct {
			return fmt.Errorf("slab %d: max_growth_pct must be strictly ascending", i)
		}
	}
	return nil
}
