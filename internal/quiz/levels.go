package quiz

import (
	"math"
	"sort"
	"sync"
)

const (
	DefaultScheme = "general-6"
	Unrated       = "Unrated"
)

// Band maps the inclusive score range [Min, Max] to Label.
type Band struct {
	Label string `mapstructure:"label" json:"label"`
	Min   int    `mapstructure:"min" json:"min"`
	Max   int    `mapstructure:"max" json:"max"`
}

// BuiltinSchemes returns the band schemes shipped with the service.
func BuiltinSchemes() map[string][]Band {
	return map[string][]Band{
		"general-6": {
			{Label: "Beginner", Min: 0, Max: 24},
			{Label: "Elementary", Min: 25, Max: 44},
			{Label: "Intermediate", Min: 45, Max: 64},
			{Label: "Upper-Intermediate", Min: 65, Max: 79},
			{Label: "Advanced", Min: 80, Max: 90},
			{Label: "Expert", Min: 91, Max: 100},
		},
		"school": {
			{Label: "Primary school", Min: 0, Max: 29},
			{Label: "Middle school", Min: 30, Max: 54},
			{Label: "High school", Min: 55, Max: 74},
			{Label: "University (undergrad)", Min: 75, Max: 89},
			{Label: "University (advanced)", Min: 90, Max: 100},
		},
		"language-cefr": {
			{Label: "A1", Min: 0, Max: 19},
			{Label: "A2", Min: 20, Max: 34},
			{Label: "B1", Min: 35, Max: 54},
			{Label: "B2", Min: 55, Max: 69},
			{Label: "C1", Min: 70, Max: 84},
			{Label: "C2", Min: 85, Max: 100},
		},
	}
}

// Levels is a registry of named band schemes. It is safe for concurrent use
// and can be swapped at runtime when configuration reloads.
type Levels struct {
	mu       sync.RWMutex
	schemes  map[string][]Band
	fallback string
}

func NewLevels(schemes map[string][]Band, fallback string) *Levels {
	l := &Levels{}
	l.Replace(schemes, fallback)
	return l
}

// Replace installs a new set of schemes. An empty set keeps the built-ins;
// a fallback that does not name a scheme becomes DefaultScheme.
func (l *Levels) Replace(schemes map[string][]Band, fallback string) {
	if len(schemes) == 0 {
		schemes = BuiltinSchemes()
	}
	copied := make(map[string][]Band, len(schemes))
	for name, bands := range schemes {
		copied[name] = append([]Band(nil), bands...)
	}
	if _, ok := copied[fallback]; !ok {
		fallback = DefaultScheme
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.schemes = copied
	l.fallback = fallback
}

// Resolve returns name if it is registered, otherwise the fallback scheme.
func (l *Levels) Resolve(name string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.schemes[name]; ok {
		return name
	}
	return l.fallback
}

// Level returns the label of the first band of scheme containing score.
func (l *Levels) Level(scheme string, score float64) string {
	l.mu.RLock()
	bands, ok := l.schemes[scheme]
	if !ok {
		bands = l.schemes[l.fallback]
	}
	l.mu.RUnlock()

	s := int(math.Round(math.Max(MinSkill, math.Min(MaxSkill, score))))
	for _, b := range bands {
		if s >= b.Min && s <= b.Max {
			return b.Label
		}
	}
	return Unrated
}

// Names lists registered schemes in lexical order.
func (l *Levels) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.schemes))
	for name := range l.schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bands returns a copy of the bands of scheme after fallback resolution.
func (l *Levels) Bands(scheme string) []Band {
	name := l.Resolve(scheme)
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Band(nil), l.schemes[name]...)
}
