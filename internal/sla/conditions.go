package sla

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const conditionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "match": {"type": "string", "enum": ["all", "any"]},
    "conditions": {
      "type": "array",
      "maxItems": 50,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["field", "operator", "value"],
        "properties": {
          "field": {"type": "string", "enum": ["priority", "status", "channel", "team_id", "contact_id", "tag", "subject"]},
          "operator": {"type": "string", "enum": ["equals", "not_equals", "in", "not_in", "contains"]},
          "value": {
            "oneOf": [
              {"type": "string", "minLength": 1},
              {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
            ]
          }
        }
      }
    }
  }
}`

var conditionSchemaLoader = gojsonschema.NewStringLoader(conditionSchema)

// ValidateConditions checks a raw condition document against the schema and
// returns one message per violation.
func ValidateConditions(raw []byte) ([]string, error) {
	result, err := gojsonschema.Validate(conditionSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate conditions: %w", err)
	}
	if result.Valid() {
		return operatorValueErrors(raw), nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return msgs, nil
}

// operatorValueErrors enforces that list operators carry lists and scalar operators carry strings.
func operatorValueErrors(raw []byte) []string {
	var set domain.ConditionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return []string{err.Error()}
	}
	var msgs []string
	for i, c := range set.Conditions {
		_, isList := c.Value.([]any)
		switch c.Operator {
		case domain.OpIn, domain.OpNotIn:
			if !isList {
				msgs = append(msgs, fmt.Sprintf("conditions.%d.value: operator %s requires a list", i, c.Operator))
			}
		default:
			if isList {
				msgs = append(msgs, fmt.Sprintf("conditions.%d.value: operator %s requires a string", i, c.Operator))
			}
		}
	}
	return msgs
}

// Matches reports whether ticket satisfies the condition set. An empty set matches every ticket.
func Matches(set domain.ConditionSet, ticket *domain.Ticket) bool {
	if len(set.Conditions) == 0 {
		return true
	}
	anyMode := set.Match == domain.MatchAny
	for _, c := range set.Conditions {
		ok := matchCondition(c, ticket)
		if anyMode && ok {
			return true
		}
		if !anyMode && !ok {
			return false
		}
	}
	return !anyMode
}

// SelectRule returns the first active rule, by sort order, that matches ticket.
func SelectRule(rules []domain.SLARule, ticket *domain.Ticket) *domain.SLARule {
	ordered := make([]domain.SLARule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive && !r.IsDeleted() {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})
	for i := range ordered {
		if Matches(ordered[i].Conditions, ticket) {
			rule := ordered[i]
			return &rule
		}
	}
	return nil
}

func matchCondition(c domain.Condition, ticket *domain.Ticket) bool {
	if c.Field == domain.FieldTag {
		return matchTags(c, ticket.Tags)
	}
	actual := fieldValue(c.Field, ticket)
	switch c.Operator {
	case domain.OpEquals:
		return strings.EqualFold(actual, scalar(c.Value))
	case domain.OpNotEquals:
		return !strings.EqualFold(actual, scalar(c.Value))
	case domain.OpIn:
		return containsFold(list(c.Value), actual)
	case domain.OpNotIn:
		return !containsFold(list(c.Value), actual)
	case domain.OpContains:
		needle := strings.ToLower(scalar(c.Value))
		return needle != "" && strings.Contains(strings.ToLower(actual), needle)
	}
	return false
}

func matchTags(c domain.Condition, tags []string) bool {
	switch c.Operator {
	case domain.OpEquals, domain.OpContains:
		return containsFold(tags, scalar(c.Value))
	case domain.OpNotEquals:
		return !containsFold(tags, scalar(c.Value))
	case domain.OpIn:
		for _, v := range list(c.Value) {
			if containsFold(tags, v) {
				return true
			}
		}
		return false
	case domain.OpNotIn:
		for _, v := range list(c.Value) {
			if containsFold(tags, v) {
				return false
			}
		}
		return true
	}
	return false
}

func fieldValue(field domain.ConditionField, ticket *domain.Ticket) string {
	switch field {
	case domain.FieldPriority:
		return string(ticket.Priority)
	case domain.FieldStatus:
		return string(ticket.Status)
	case domain.FieldChannel:
		return string(ticket.Channel)
	case domain.FieldTeamID:
		return deref(ticket.TeamID)
	case domain.FieldContactID:
		return deref(ticket.ContactID)
	case domain.FieldSubject:
		return ticket.Subject
	}
	return ""
}

func scalar(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func list(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vals}
	}
	return nil
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
