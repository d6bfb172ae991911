package mapping

// Mapper applies an ordered, validated rule list to inbound names.
// First match wins; a name no rule matches is simply not bridged.
type Mapper struct {
	rules []Rule
}

// NewMapper validates the rules and returns a mapper over them. Rule order
// is preserved and significant.
func NewMapper(rules []Rule) (*Mapper, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return &Mapper{rules: rules}, nil
}

// Translate maps an inbound name to its destination name for the given
// direction. The matched rule is returned so callers can apply its QoS and
// retain overrides. ok is false when no rule matches.
func (m *Mapper) Translate(name string, dir Direction) (mapped string, rule *Rule, ok bool) {
	srcNS := sourceNamespace(dir)
	dstNS := destNamespace(dir)

	for i := range m.rules {
		r := &m.rules[i]
		if !r.AppliesTo(dir) {
			continue
		}
		captures, matched := matchPattern(r.SourcePattern(dir), name, srcNS)
		if !matched {
			continue
		}
		return substitute(r.DestPattern(dir), captures, dstNS), r, true
	}
	return "", nil, false
}

// Loopback reports whether an inbound name sits inside a hierarchy the
// bridge itself publishes into on that transport, i.e. it matches the
// destination pattern of a rule relaying the opposite way. Rules eligible
// in the inbound direction are skipped: their traffic is legitimate input
// even though the bidirectional rule also publishes into the same space.
func (m *Mapper) Loopback(name string, dir Direction) bool {
	opp := dir.Inverse()
	srcNS := sourceNamespace(dir)

	for i := range m.rules {
		r := &m.rules[i]
		if !r.AppliesTo(opp) || r.AppliesTo(dir) {
			continue
		}
		if _, matched := matchPattern(r.DestPattern(opp), name, srcNS); matched {
			return true
		}
	}
	return false
}

// Rules returns the mapper's rule list.
func (m *Mapper) Rules() []Rule {
	return m.rules
}
