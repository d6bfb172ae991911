package mapping

import (
	"testing"
)

func mustMapper(t *testing.T, rules []Rule) *Mapper {
	t.Helper()
	m, err := NewMapper(rules)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	return m
}

func TestTranslate(t *testing.T) {
	m := mustMapper(t, []Rule{
		{
			MQTTTopic:    "sensors/+/temp",
			ZenohKeyExpr: "bridge/sensors/*/temp",
			Direction:    DirectionMQTTToZenoh,
		},
		{
			MQTTTopic:    "devices/#",
			ZenohKeyExpr: "bridge/devices/**",
			Direction:    DirectionMQTTToZenoh,
		},
		{
			MQTTTopic:    "zenoh/alerts/#",
			ZenohKeyExpr: "apps/alerts/**",
			Direction:    DirectionZenohToMQTT,
		},
	})

	tests := []struct {
		name    string
		in      string
		dir     Direction
		want    string
		matched bool
	}{
		{"Single-level wildcard", "sensors/kitchen/temp", DirectionMQTTToZenoh, "bridge/sensors/kitchen/temp", true},
		{"Literal mismatch", "sensors/kitchen/humidity", DirectionMQTTToZenoh, "", false},
		{"No matching rule", "internal/debug", DirectionMQTTToZenoh, "", false},
		{"Multi-level wildcard", "devices/rack1/psu/status", DirectionMQTTToZenoh, "bridge/devices/rack1/psu/status", true},
		{"Multi-level matches zero levels", "devices", DirectionMQTTToZenoh, "bridge/devices", true},
		{"Zenoh to mqtt", "apps/alerts/smoke", DirectionZenohToMQTT, "zenoh/alerts/smoke", true},
		{"Direction not eligible", "apps/alerts/smoke", DirectionMQTTToZenoh, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule, ok := m.Translate(tt.in, tt.dir)
			if ok != tt.matched {
				t.Fatalf("Translate(%q, %s) ok = %v, want %v", tt.in, tt.dir, ok, tt.matched)
			}
			if !tt.matched {
				return
			}
			if got != tt.want {
				t.Errorf("Translate(%q, %s) = %q, want %q", tt.in, tt.dir, got, tt.want)
			}
			if rule == nil {
				t.Errorf("Translate(%q, %s) returned nil rule", tt.in, tt.dir)
			}
		})
	}
}

func TestTranslateFirstMatchWins(t *testing.T) {
	m := mustMapper(t, []Rule{
		{
			MQTTTopic:    "sensors/kitchen/temp",
			ZenohKeyExpr: "bridge/kitchen/temp",
			Direction:    DirectionMQTTToZenoh,
		},
		{
			MQTTTopic:    "sensors/#",
			ZenohKeyExpr: "bridge/catchall/**",
			Direction:    DirectionMQTTToZenoh,
		},
	})

	got, _, ok := m.Translate("sensors/kitchen/temp", DirectionMQTTToZenoh)
	if !ok || got != "bridge/kitchen/temp" {
		t.Errorf("Translate() = %q, %v; want the first rule's destination", got, ok)
	}

	got, _, ok = m.Translate("sensors/attic/temp", DirectionMQTTToZenoh)
	if !ok || got != "bridge/catchall/attic/temp" {
		t.Errorf("Translate() = %q, %v; want the catch-all destination", got, ok)
	}
}

func TestTranslateRoundTrip(t *testing.T) {
	m := mustMapper(t, []Rule{
		{
			MQTTTopic:    "light/+/cmd",
			ZenohKeyExpr: "home/light/*/cmd",
			Direction:    DirectionBoth,
		},
		{
			MQTTTopic:    "building/#",
			ZenohKeyExpr: "site/building/**",
			Direction:    DirectionBoth,
		},
	})

	topics := []string{
		"light/kitchen/cmd",
		"building/3/floor/2/door",
		"building",
	}

	for _, topic := range topics {
		forward, _, ok := m.Translate(topic, DirectionMQTTToZenoh)
		if !ok {
			t.Fatalf("Translate(%q) did not match", topic)
		}
		back, _, ok := m.Translate(forward, DirectionZenohToMQTT)
		if !ok {
			t.Fatalf("inverse Translate(%q) did not match", forward)
		}
		if back != topic {
			t.Errorf("round trip %q -> %q -> %q, want original", topic, forward, back)
		}
	}
}

func TestLoopback(t *testing.T) {
	m := mustMapper(t, []Rule{
		{
			MQTTTopic:    "sensors/#",
			ZenohKeyExpr: "bridge/mqtt/**",
			Direction:    DirectionMQTTToZenoh,
		},
		{
			MQTTTopic:    "zenoh/#",
			ZenohKeyExpr: "apps/**",
			Direction:    DirectionZenohToMQTT,
		},
	})

	tests := []struct {
		name string
		in   string
		dir  Direction
		want bool
	}{
		{"MQTT name the bridge publishes to", "zenoh/alerts/smoke", DirectionMQTTToZenoh, true},
		{"Ordinary mqtt source name", "sensors/kitchen/temp", DirectionMQTTToZenoh, false},
		{"Zenoh key the bridge publishes to", "bridge/mqtt/sensors/kitchen", DirectionZenohToMQTT, true},
		{"Ordinary zenoh source key", "apps/alerts/smoke", DirectionZenohToMQTT, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Loopback(tt.in, tt.dir); got != tt.want {
				t.Errorf("Loopback(%q, %s) = %v, want %v", tt.in, tt.dir, got, tt.want)
			}
		})
	}
}

func TestLoopbackSkipsBidirectionalRules(t *testing.T) {
	m := mustMapper(t, []Rule{
		{
			MQTTTopic:    "light/+/cmd",
			ZenohKeyExpr: "home/light/*/cmd",
			Direction:    DirectionBoth,
		},
	})

	// Traffic matching a bidirectional rule's own space is legitimate input.
	if m.Loopback("light/kitchen/cmd", DirectionMQTTToZenoh) {
		t.Errorf("Loopback() flagged a bidirectional rule's own source")
	}
	if m.Loopback("home/light/kitchen/cmd", DirectionZenohToMQTT) {
		t.Errorf("Loopback() flagged a bidirectional rule's own source")
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		in       string
		ns       namespace
		captures []string
		matched  bool
	}{
		{"Exact", "a/b/c", "a/b/c", mqttNS, []string{}, true},
		{"Exact mismatch", "a/b/c", "a/b/d", mqttNS, nil, false},
		{"Shorter name", "a/b/c", "a/b", mqttNS, nil, false},
		{"Longer name", "a/b", "a/b/c", mqttNS, nil, false},
		{"Single wildcard", "a/+/c", "a/b/c", mqttNS, []string{"b"}, true},
		{"Multi wildcard", "a/#", "a/b/c", mqttNS, []string{"b/c"}, true},
		{"Multi matches zero", "a/#", "a", mqttNS, []string{""}, true},
		{"Zenoh single", "a/*/c", "a/b/c", zenohNS, []string{"b"}, true},
		{"Zenoh multi", "a/**", "a/b/c", zenohNS, []string{"b/c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, ok := matchPattern(tt.pattern, tt.in, tt.ns)
			if ok != tt.matched {
				t.Fatalf("matchPattern(%q, %q) ok = %v, want %v", tt.pattern, tt.in, ok, tt.matched)
			}
			if !ok {
				return
			}
			if len(caps) != len(tt.captures) {
				t.Fatalf("captures = %v, want %v", caps, tt.captures)
			}
			for i := range caps {
				if caps[i] != tt.captures[i] {
					t.Errorf("captures[%d] = %q, want %q", i, caps[i], tt.captures[i])
				}
			}
		})
	}
}

func TestPatternsOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		ns   namespace
		want bool
	}{
		{"Identical", "a/b", "a/b", mqttNS, true},
		{"Disjoint literals", "a/b", "a/c", mqttNS, false},
		{"Single vs literal", "a/+", "a/b", mqttNS, true},
		{"Multi vs anything", "a/#", "a/b/c/d", mqttNS, true},
		{"Multi matches zero levels", "a/#", "a", mqttNS, true},
		{"Different roots", "a/#", "b/#", mqttNS, false},
		{"Zenoh multi", "bridge/**", "bridge/x/y", zenohNS, true},
		{"Zenoh disjoint", "bridge/**", "apps/x", zenohNS, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := patternsOverlap(tt.a, tt.b, tt.ns); got != tt.want {
				t.Errorf("patternsOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
