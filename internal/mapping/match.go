package mapping

import (
	"strings"
)

// namespace holds the wildcard tokens for one side of the bridge.
type namespace struct {
	single string // matches exactly one level
	multi  string // matches any number of trailing levels
}

var (
	mqttNS  = namespace{single: "+", multi: "#"}
	zenohNS = namespace{single: "*", multi: "**"}
)

func sourceNamespace(dir Direction) namespace {
	if dir == DirectionMQTTToZenoh {
		return mqttNS
	}
	return zenohNS
}

func destNamespace(dir Direction) namespace {
	if dir == DirectionMQTTToZenoh {
		return zenohNS
	}
	return mqttNS
}

// matchPattern matches a concrete name against a pattern and returns the
// text captured by each wildcard, in pattern order. The multi-level wildcard
// captures the joined remainder of the name, which may be empty.
func matchPattern(pattern, name string, ns namespace) ([]string, bool) {
	pSegs := strings.Split(pattern, "/")
	nSegs := strings.Split(name, "/")

	captures := make([]string, 0, len(pSegs))
	for i, seg := range pSegs {
		if seg == ns.multi {
			// Validated patterns only carry this in last position.
			if i >= len(nSegs) {
				captures = append(captures, "")
			} else {
				captures = append(captures, strings.Join(nSegs[i:], "/"))
			}
			return captures, true
		}
		if i >= len(nSegs) {
			return nil, false
		}
		if seg == ns.single {
			captures = append(captures, nSegs[i])
			continue
		}
		if seg != nSegs[i] {
			return nil, false
		}
	}

	if len(nSegs) != len(pSegs) {
		return nil, false
	}
	return captures, true
}

// substitute rebuilds a destination name from a pattern by replacing each
// wildcard with the corresponding capture. An empty multi-level capture
// drops the segment entirely.
func substitute(pattern string, captures []string, ns namespace) string {
	segs := strings.Split(pattern, "/")
	out := make([]string, 0, len(segs))
	ci := 0
	for _, seg := range segs {
		switch seg {
		case ns.multi:
			if ci < len(captures) && captures[ci] != "" {
				out = append(out, captures[ci])
			}
			ci++
		case ns.single:
			if ci < len(captures) {
				out = append(out, captures[ci])
			}
			ci++
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

// patternsOverlap reports whether two patterns in the same namespace can
// match a common concrete name.
func patternsOverlap(a, b string, ns namespace) bool {
	return segsOverlap(strings.Split(a, "/"), strings.Split(b, "/"), ns)
}

func segsOverlap(a, b []string, ns namespace) bool {
	if len(a) == 0 || len(b) == 0 {
		if len(a) == 0 && len(b) == 0 {
			return true
		}
		rest := a
		if len(a) == 0 {
			rest = b
		}
		// A lone trailing multi-wildcard also matches zero levels.
		return len(rest) == 1 && rest[0] == ns.multi
	}
	if a[0] == ns.multi || b[0] == ns.multi {
		return true
	}
	if a[0] == ns.single || b[0] == ns.single || a[0] == b[0] {
		return segsOverlap(a[1:], b[1:], ns)
	}
	return false
}

// wildcardSignature summarizes the wildcard shape of a pattern.
func wildcardSignature(pattern string, ns namespace) (singles int, multi bool) {
	for _, seg := range strings.Split(pattern, "/") {
		switch seg {
		case ns.single:
			singles++
		case ns.multi:
			multi = true
		}
	}
	return singles, multi
}

// toMQTTPattern rewrites a Zenoh key-expression pattern with MQTT wildcard
// tokens, used to compare hierarchies across the two namespaces.
func toMQTTPattern(keyExpr string) string {
	segs := strings.Split(keyExpr, "/")
	out := make([]string, len(segs))
	for i, seg := range segs {
		switch seg {
		case zenohNS.multi:
			out[i] = mqttNS.multi
		case zenohNS.single:
			out[i] = mqttNS.single
		default:
			out[i] = seg
		}
	}
	return strings.Join(out, "/")
}
