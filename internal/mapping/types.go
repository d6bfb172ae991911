// Package mapping translates between MQTT topics and Zenoh key expressions
// using an ordered list of configured rules.
package mapping

import (
	"fmt"
)

// Direction identifies a relay direction, or both for bidirectional rules.
type Direction string

const (
	DirectionMQTTToZenoh Direction = "mqtt_to_zenoh"
	DirectionZenohToMQTT Direction = "zenoh_to_mqtt"
	DirectionBoth        Direction = "both"
)

// Inverse returns the opposite relay direction. It is only meaningful for
// the two concrete directions.
func (d Direction) Inverse() Direction {
	if d == DirectionMQTTToZenoh {
		return DirectionZenohToMQTT
	}
	return DirectionMQTTToZenoh
}

func (d Direction) valid() bool {
	switch d {
	case DirectionMQTTToZenoh, DirectionZenohToMQTT, DirectionBoth:
		return true
	}
	return false
}

// Rule maps an MQTT topic pattern to a Zenoh key-expression pattern.
// Wildcards are the native ones for each side: + and # for MQTT, * and **
// for Zenoh. QoS and Retain optionally override the bridge defaults for
// MQTT-bound publishes produced by this rule.
type Rule struct {
	MQTTTopic    string    `json:"mqttTopic" yaml:"mqttTopic"`
	ZenohKeyExpr string    `json:"zenohKeyExpr" yaml:"zenohKeyExpr"`
	Direction    Direction `json:"direction" yaml:"direction"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	QoS          *byte     `json:"qos,omitempty" yaml:"qos,omitempty"`
	Retain       *bool     `json:"retain,omitempty" yaml:"retain,omitempty"`
}

// AppliesTo reports whether the rule is eligible for a relay direction.
func (r *Rule) AppliesTo(dir Direction) bool {
	return r.Direction == dir || r.Direction == DirectionBoth
}

// SourcePattern returns the pattern matched against inbound names for a
// direction.
func (r *Rule) SourcePattern(dir Direction) string {
	if dir == DirectionMQTTToZenoh {
		return r.MQTTTopic
	}
	return r.ZenohKeyExpr
}

// DestPattern returns the pattern the destination name is built from for a
// direction.
func (r *Rule) DestPattern(dir Direction) string {
	if dir == DirectionMQTTToZenoh {
		return r.ZenohKeyExpr
	}
	return r.MQTTTopic
}

// RuleValidationError reports a configuration problem in a mapping rule
type RuleValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
