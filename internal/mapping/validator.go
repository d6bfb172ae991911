package mapping

import (
	"fmt"
	"strings"
)

// ValidateRules checks every rule for syntax, round-trip safety, and echo
// potential. Validation runs once at startup; any error is fatal to the
// bridge, which must refuse to relay with an ambiguous mapping.
func ValidateRules(rules []Rule) error {
	for i := range rules {
		if err := validateRule(&rules[i]); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return validateDisjoint(rules)
}

func validateRule(rule *Rule) error {
	if !rule.Direction.valid() {
		return &RuleValidationError{
			Field:   "direction",
			Message: fmt.Sprintf("must be %q, %q, or %q", DirectionMQTTToZenoh, DirectionZenohToMQTT, DirectionBoth),
		}
	}

	if err := validatePattern(rule.MQTTTopic, mqttNS); err != nil {
		return &RuleValidationError{
			Field:   "mqttTopic",
			Message: err.Error(),
		}
	}
	if err := validatePattern(rule.ZenohKeyExpr, zenohNS); err != nil {
		return &RuleValidationError{
			Field:   "zenohKeyExpr",
			Message: err.Error(),
		}
	}

	if rule.QoS != nil && *rule.QoS > 2 {
		return &RuleValidationError{
			Field:   "qos",
			Message: "QoS must be 0, 1, or 2",
		}
	}

	// Round-trip safety: translating forward and back must restore the
	// original name, which requires both sides to bind the same wildcards
	// in the same order.
	mqttSingles, mqttMulti := wildcardSignature(rule.MQTTTopic, mqttNS)
	zenohSingles, zenohMulti := wildcardSignature(rule.ZenohKeyExpr, zenohNS)
	if mqttSingles != zenohSingles || mqttMulti != zenohMulti {
		return &RuleValidationError{
			Field: "zenohKeyExpr",
			Message: fmt.Sprintf("wildcards do not line up with mqttTopic (%d+%v vs %d+%v): rule is not round-trip safe",
				mqttSingles, mqttMulti, zenohSingles, zenohMulti),
		}
	}

	// A rule that maps a hierarchy onto itself echoes every message it
	// relays straight back.
	if toMQTTPattern(rule.ZenohKeyExpr) == rule.MQTTTopic {
		return &RuleValidationError{
			Field:   "zenohKeyExpr",
			Message: "maps the topic space onto itself: relayed messages would echo",
		}
	}

	return nil
}

// validatePattern checks wildcard placement for one namespace.
func validatePattern(pattern string, ns namespace) error {
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}

	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		switch {
		case seg == ns.multi:
			if i != len(segments)-1 {
				return fmt.Errorf("multi-level wildcard (%s) must be the last segment", ns.multi)
			}
		case seg == ns.single:
		case seg == "":
			return fmt.Errorf("empty segment not allowed")
		case strings.Contains(seg, ns.multi) || strings.Contains(seg, ns.single):
			return fmt.Errorf("wildcard must occupy an entire segment, got %q", seg)
		}
	}

	return nil
}

// validateDisjoint rejects rule sets where one rule's destination overlaps
// another rule's source in the opposite direction. Messages published into
// such an overlap would be re-ingested and relayed again. A bidirectional
// rule trivially coincides with itself; that pair is the intended round
// trip, not an echo path, so self-comparison is skipped.
func validateDisjoint(rules []Rule) error {
	for i := range rules {
		a := &rules[i]
		if !a.AppliesTo(DirectionMQTTToZenoh) {
			continue
		}
		for j := range rules {
			if i == j {
				continue
			}
			b := &rules[j]
			if !b.AppliesTo(DirectionZenohToMQTT) {
				continue
			}
			if patternsOverlap(a.ZenohKeyExpr, b.ZenohKeyExpr, zenohNS) {
				return fmt.Errorf(
					"rule %d zenoh destination %q overlaps rule %d zenoh source %q: relayed messages would be re-ingested",
					i, a.ZenohKeyExpr, j, b.ZenohKeyExpr)
			}
			if patternsOverlap(b.MQTTTopic, a.MQTTTopic, mqttNS) {
				return fmt.Errorf(
					"rule %d mqtt destination %q overlaps rule %d mqtt source %q: relayed messages would be re-ingested",
					j, b.MQTTTopic, i, a.MQTTTopic)
			}
		}
	}
	return nil
}
