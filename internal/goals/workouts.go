package goals

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BTreeMap/HydroPipe/internal/models"
)

// Workout kinds known out of the box.
const (
	WorkoutRun      = "run"
	WorkoutWalk     = "walk"
	WorkoutSwim     = "swim"
	WorkoutBike     = "bike"
	WorkoutYoga     = "yoga"
	WorkoutStrength = "strength"
)

// DefaultRates maps each workout kind to kcal burned per minute.
var DefaultRates = map[string]float64{
	WorkoutRun:      10,
	WorkoutWalk:     5,
	WorkoutSwim:     8,
	WorkoutBike:     7,
	WorkoutYoga:     3,
	WorkoutStrength: 6,
}

// defaultAliases lets users type the kinds in Russian as well.
var defaultAliases = map[string]string{
	"бег":       WorkoutRun,
	"ходьба":    WorkoutWalk,
	"плавание":  WorkoutSwim,
	"велосипед": WorkoutBike,
	"йога":      WorkoutYoga,
	"силовая":   WorkoutStrength,
	"running":   WorkoutRun,
	"walking":   WorkoutWalk,
	"swimming":  WorkoutSwim,
	"cycling":   WorkoutBike,
}

// Catalog is the closed set of workout kinds with their burn rates.
type Catalog struct {
	rates   map[string]float64
	aliases map[string]string
}

// NewCatalog builds a catalog from the defaults plus the given overrides.
// An override with a non-positive rate removes the kind.
func NewCatalog(overrides map[string]float64) *Catalog {
	c := &Catalog{
		rates:   make(map[string]float64, len(DefaultRates)+len(overrides)),
		aliases: make(map[string]string, len(defaultAliases)),
	}
	for k, v := range DefaultRates {
		c.rates[k] = v
	}
	for k, v := range overrides {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if v <= 0 {
			delete(c.rates, k)
			continue
		}
		c.rates[k] = v
	}
	for alias, kind := range defaultAliases {
		if _, ok := c.rates[kind]; ok {
			c.aliases[alias] = kind
		}
	}
	return c
}

// DefaultCatalog returns a catalog holding only DefaultRates.
func DefaultCatalog() *Catalog {
	return NewCatalog(nil)
}

// Resolve normalises input to a known kind.
func (c *Catalog) Resolve(input string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	if _, ok := c.rates[key]; ok {
		return key, nil
	}
	if kind, ok := c.aliases[key]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", models.ErrUnknownWorkout, input)
}

// Rate returns the kcal-per-minute rate of kind.
func (c *Catalog) Rate(kind string) (float64, bool) {
	r, ok := c.rates[kind]
	return r, ok
}

// Kinds returns the known kinds sorted alphabetically.
func (c *Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c.rates))
	for k := range c.rates {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Burned returns the calories burned by a workout of kind lasting durationMin.
func (c *Catalog) Burned(kind string, durationMin int) (float64, error) {
	rate, ok := c.rates[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", models.ErrUnknownWorkout, kind)
	}
	return rate * float64(durationMin), nil
}
