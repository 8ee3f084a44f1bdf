package geo

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed cities.yaml
var citiesYAML []byte

var ErrInvalidCoordinates = errors.New("invalid coordinates")

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Gazetteer maps city names, as reported by the insights API, to coordinates.
type Gazetteer struct {
	mu     sync.RWMutex
	cities map[string]Coordinates
}

// NewGazetteer loads the built-in city table.
func NewGazetteer() (*Gazetteer, error) {
	var raw map[string][]float64
	if err := yaml.Unmarshal(citiesYAML, &raw); err != nil {
		return nil, err
	}

	g := &Gazetteer{
		cities: make(map[string]Coordinates, len(raw)),
	}

	if err := g.Merge(raw); err != nil {
		return nil, err
	}

	return g, nil
}

func (g *Gazetteer) Lookup(name string) (Coordinates, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.cities[name]
	return c, ok
}

// Merge adds or replaces entries given as [lat, lng] pairs.
func (g *Gazetteer) Merge(cities map[string][]float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, pair := range cities {
		if len(pair) != 2 {
			return fmt.Errorf("%w: %s", ErrInvalidCoordinates, name)
		}

		g.cities[name] = Coordinates{Lat: pair[0], Lng: pair[1]}
	}

	return nil
}

func (g *Gazetteer) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.cities)
}
