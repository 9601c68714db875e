package models

import (
	"fmt"
	"strings"
)

// SkillTier is an ordered seniority level.
type SkillTier int

const (
	TierJunior SkillTier = iota + 1
	TierIntermediate
	TierSenior
)

var tierNames = map[SkillTier]string{
	TierJunior:       "junior",
	TierIntermediate: "intermediate",
	TierSenior:       "senior",
}

func (t SkillTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseSkillTier parses a tier name such as "senior".
func ParseSkillTier(s string) (SkillTier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for tier, name := range tierNames {
		if name == s {
			return tier, nil
		}
	}
	return 0, fmt.Errorf("unknown skill tier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t SkillTier) MarshalText() ([]byte, error) {
	if _, ok := tierNames[t]; !ok {
		return nil, fmt.Errorf("unknown skill tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SkillTier) UnmarshalText(b []byte) error {
	tier, err := ParseSkillTier(string(b))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// Persona is the static profile a synthetic participant replies as.
type Persona struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Role           string     `json:"role" yaml:"role"`
	Specialization string     `json:"specialization" yaml:"specialization"`
	Personality    string     `json:"personality" yaml:"personality"`
	Tier           SkillTier  `json:"skill_tier" yaml:"skill_tier"`
	Rooms          []RoomKind `json:"rooms" yaml:"rooms"`
}

// SitsIn reports whether the persona is seeded into rooms of the given kind.
func (p *Persona) SitsIn(kind RoomKind) bool {
	for _, k := range p.Rooms {
		if k == kind {
			return true
		}
	}
	return false
}
