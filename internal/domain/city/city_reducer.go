package city

import (
	"errors"
	"fmt"

	"github.com/FACorreiaa/loci-cities/internal/types"
)

// ErrUnknownAction is the panic value (wrapped) for an action the reducer does not handle.
var ErrUnknownAction = errors.New("city reducer: unknown action")

// State is the single source of truth for the client-side city data.
type State struct {
	Cities      []types.City
	CurrentCity *types.City
	IsLoading   bool
	Error       string
}

// InitialState is the state a session starts with.
func InitialState() State {
	return State{Cities: []types.City{}}
}

// Action is the closed set of transitions accepted by Reduce.
type Action interface {
	Type() string
	action()
}

type (
	// Loading marks a network call as in flight.
	Loading struct{}

	// CitiesLoaded replaces the whole collection.
	CitiesLoaded struct{ Cities []types.City }

	// CityLoaded selects a freshly fetched city.
	CityLoaded struct{ City types.City }

	// CityCreated appends a persisted city and selects it.
	CityCreated struct{ City types.City }

	// CityDeleted removes a city by id and clears the selection.
	CityDeleted struct{ ID types.CityID }

	// Rejected records a failure message.
	Rejected struct{ Message string }
)

func (Loading) Type() string      { return "loading" }
func (CitiesLoaded) Type() string { return "cities/loaded" }
func (CityLoaded) Type() string   { return "city/loaded" }
func (CityCreated) Type() string  { return "city/created" }
func (CityDeleted) Type() string  { return "city/deleted" }
func (Rejected) Type() string     { return "rejected" }

func (Loading) action()      {}
func (CitiesLoaded) action() {}
func (CityLoaded) action()   {}
func (CityCreated) action()  {}
func (CityDeleted) action()  {}
func (Rejected) action()     {}

// Reduce returns the state that results from applying a to s. It never
// mutates s: slices are copied before they change. Terminal success actions
// clear Error; Loading leaves it in place.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Loading:
		s.IsLoading = true
		return s
	case CitiesLoaded:
		s.Cities = cloneCities(a.Cities)
		s.IsLoading = false
		s.Error = ""
		return s
	case CityLoaded:
		c := a.City
		s.CurrentCity = &c
		s.IsLoading = false
		s.Error = ""
		return s
	case CityCreated:
		cities := make([]types.City, 0, len(s.Cities)+1)
		cities = append(cities, s.Cities...)
		s.Cities = append(cities, a.City)
		c := a.City
		s.CurrentCity = &c
		s.IsLoading = false
		s.Error = ""
		return s
	case CityDeleted:
		cities := make([]types.City, 0, len(s.Cities))
		for _, c := range s.Cities {
			if c.ID != a.ID {
				cities = append(cities, c)
			}
		}
		s.Cities = cities
		// any successful delete clears the selection, even when another city was deleted
		s.CurrentCity = nil
		s.IsLoading = false
		s.Error = ""
		return s
	case Rejected:
		s.Error = a.Message
		s.IsLoading = false
		return s
	default:
		panic(fmt.Errorf("%w: %T", ErrUnknownAction, a))
	}
}

func cloneCities(in []types.City) []types.City {
	out := make([]types.City, len(in))
	copy(out, in)
	return out
}
