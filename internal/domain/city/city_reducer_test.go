package city

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-cities/internal/types"
)

func testCities() []types.City {
	return []types.City{
		{ID: "1", CityName: "Lisbon", Country: "Portugal", Emoji: "🇵🇹", Date: "2027-10-31T15:59:59.138Z", Position: types.Position{Lat: 38.72, Lng: -9.14}},
		{ID: "2", CityName: "Madrid", Country: "Spain", Emoji: "🇪🇸", Date: "2027-07-15T08:22:53.976Z", Position: types.Position{Lat: 40.46, Lng: -3.68}},
		{ID: "3", CityName: "Berlin", Country: "Germany", Emoji: "🇩🇪", Date: "2027-02-12T09:24:11.863Z", Position: types.Position{Lat: 52.53, Lng: 13.38}},
	}
}

type bogusAction struct{}

func (bogusAction) Type() string { return "bogus" }
func (bogusAction) action()      {}

func TestReduce_Transitions(t *testing.T) {
	t.Run("loading keeps error", func(t *testing.T) {
		s := State{Error: "boom"}
		next := Reduce(s, Loading{})
		assert.True(t, next.IsLoading)
		assert.Equal(t, "boom", next.Error)
	})

	t.Run("cities loaded replaces the collection", func(t *testing.T) {
		s := State{Cities: testCities()[:1], IsLoading: true, Error: "stale"}
		next := Reduce(s, CitiesLoaded{Cities: testCities()})
		assert.Equal(t, testCities(), next.Cities)
		assert.False(t, next.IsLoading)
		assert.Empty(t, next.Error)
	})

	t.Run("cities loaded with nil gives an empty collection", func(t *testing.T) {
		next := Reduce(InitialState(), CitiesLoaded{})
		require.NotNil(t, next.Cities)
		assert.Empty(t, next.Cities)
	})

	t.Run("city loaded selects the city", func(t *testing.T) {
		c := testCities()[1]
		next := Reduce(State{Cities: testCities(), IsLoading: true}, CityLoaded{City: c})
		require.NotNil(t, next.CurrentCity)
		assert.Equal(t, c, *next.CurrentCity)
		assert.Equal(t, testCities(), next.Cities)
		assert.False(t, next.IsLoading)
	})

	t.Run("city created appends and selects", func(t *testing.T) {
		s := State{Cities: testCities()[:2], IsLoading: true}
		created := testCities()[2]
		next := Reduce(s, CityCreated{City: created})
		require.Len(t, next.Cities, len(s.Cities)+1)
		assert.Equal(t, created, next.Cities[len(next.Cities)-1])
		require.NotNil(t, next.CurrentCity)
		assert.Equal(t, created, *next.CurrentCity)
		assert.False(t, next.IsLoading)
	})

	t.Run("city deleted removes the id and clears selection", func(t *testing.T) {
		cur := testCities()[0]
		s := State{Cities: testCities(), CurrentCity: &cur, IsLoading: true}
		next := Reduce(s, CityDeleted{ID: "2"})
		for _, c := range next.Cities {
			assert.NotEqual(t, types.CityID("2"), c.ID)
		}
		assert.Len(t, next.Cities, 2)
		// the selected city was not the deleted one, the selection is cleared anyway
		assert.Nil(t, next.CurrentCity)
		assert.False(t, next.IsLoading)
	})

	t.Run("city deleted with unknown id only clears selection", func(t *testing.T) {
		cur := testCities()[0]
		next := Reduce(State{Cities: testCities(), CurrentCity: &cur}, CityDeleted{ID: "missing"})
		assert.Equal(t, testCities(), next.Cities)
		assert.Nil(t, next.CurrentCity)
	})

	t.Run("rejected only touches error and loading", func(t *testing.T) {
		cur := testCities()[1]
		s := State{Cities: testCities(), CurrentCity: &cur, IsLoading: true}
		next := Reduce(s, Rejected{Message: "network response was not ok"})
		assert.Equal(t, "network response was not ok", next.Error)
		assert.False(t, next.IsLoading)
		assert.Equal(t, s.Cities, next.Cities)
		assert.Same(t, s.CurrentCity, next.CurrentCity)
	})
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	backing := make([]types.City, 2, 8)
	copy(backing, testCities()[:2])
	s := State{Cities: backing}

	created := Reduce(s, CityCreated{City: testCities()[2]})
	created.Cities[0].CityName = "changed"
	assert.Equal(t, "Lisbon", s.Cities[0].CityName)
	assert.Equal(t, types.City{}, backing[:3][2], "spare capacity of the input must stay untouched")

	deleted := Reduce(s, CityDeleted{ID: "1"})
	require.Len(t, deleted.Cities, 1)
	assert.Len(t, s.Cities, 2)

	list := testCities()
	loaded := Reduce(s, CitiesLoaded{Cities: list})
	list[0].CityName = "changed"
	assert.Equal(t, "Lisbon", loaded.Cities[0].CityName)
}

func TestReduce_UnknownActionPanics(t *testing.T) {
	assertPanicsWithUnknownAction := func(t *testing.T, a Action) {
		t.Helper()
		defer func() {
			r := recover()
			require.NotNil(t, r)
			err, ok := r.(error)
			require.True(t, ok)
			assert.True(t, errors.Is(err, ErrUnknownAction))
		}()
		Reduce(InitialState(), a)
	}

	t.Run("foreign variant", func(t *testing.T) {
		assertPanicsWithUnknownAction(t, bogusAction{})
	})
	t.Run("nil action", func(t *testing.T) {
		assertPanicsWithUnknownAction(t, nil)
	})
}

func TestReduce_DeleteAfterAnySequence(t *testing.T) {
	sequences := [][]Action{
		{CitiesLoaded{Cities: testCities()}},
		{CitiesLoaded{Cities: testCities()}, CityLoaded{City: testCities()[2]}},
		{CityCreated{City: testCities()[2]}, Rejected{Message: "x"}, Loading{}},
		{CitiesLoaded{Cities: testCities()}, CityCreated{City: testCities()[2]}},
	}

	for i, seq := range sequences {
		s := InitialState()
		for _, a := range seq {
			s = Reduce(s, a)
		}
		s = Reduce(s, CityDeleted{ID: "3"})
		for _, c := range s.Cities {
			assert.NotEqual(t, types.CityID("3"), c.ID, "sequence %d", i)
		}
		assert.Nil(t, s.CurrentCity, "sequence %d", i)
	}
}

func TestAction_Types(t *testing.T) {
	tags := map[string]Action{
		"loading":       Loading{},
		"cities/loaded": CitiesLoaded{},
		"city/loaded":   CityLoaded{},
		"city/created":  CityCreated{},
		"city/deleted":  CityDeleted{},
		"rejected":      Rejected{},
	}
	for tag, a := range tags {
		assert.Equal(t, tag, a.Type())
	}
}
