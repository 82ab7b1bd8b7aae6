package enhancements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_Empty(t *testing.T) {
	calc := NewCalculator(DefaultPriceBook())

	b, err := calc.Calculate(Request{}, 100)
	require.NoError(t, err)
	assert.Zero(t, b.Total)
	assert.Empty(t, b.Lines)
}

func TestCalculate_FlatOptions(t *testing.T) {
	calc := NewCalculator(DefaultPriceBook())

	b, err := calc.Calculate(Request{TripProtection: true, MeetAndGreet: true}, 100)
	require.NoError(t, err)
	assert.InDelta(t, 40.00, b.Total, 1e-9)
	require.Len(t, b.Lines, 2)
	assert.Equal(t, "trip_protection", b.Lines[0].Code)
	assert.Equal(t, "meet_and_greet", b.Lines[1].Code)
}

func TestCalculate_LuggageFreeThreshold(t *testing.T) {
	calc := NewCalculator(DefaultPriceBook())

	b, err := calc.Calculate(Request{LuggageCount: 2}, 100)
	require.NoError(t, err)
	assert.Empty(t, b.Lines, "bags within the free threshold cost nothing")

	b, err = calc.Calculate(Request{LuggageCount: 5}, 100)
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)
	assert.Equal(t, 3, b.Lines[0].Quantity)
	assert.InDelta(t, 15.00, b.Total, 1e-9)
}

func TestCalculate_VehicleUpgradeUsesBaseAmount(t *testing.T) {
	calc := NewCalculator(DefaultPriceBook())

	b, err := calc.Calculate(Request{VehicleUpgrade: "suv", TripProtection: true}, 200)
	require.NoError(t, err)

	var upgrade *Line
	for i := range b.Lines {
		if b.Lines[i].Code == "vehicle_upgrade" {
			upgrade = &b.Lines[i]
		}
	}
	require.NotNil(t, upgrade)
	// 25% of the 200 base, unaffected by the trip protection line.
	assert.InDelta(t, 50.00, upgrade.Amount, 1e-9)
}

func TestCalculate_ChildSeatsPerTypeDeterministic(t *testing.T) {
	calc := NewCalculator(DefaultPriceBook())

	req := Request{ChildSeats: map[string]int{"booster": 1, "infant": 2}}
	b, err := calc.Calculate(req, 100)
	require.NoError(t, err)
	require.Len(t, b.Lines, 2)
	assert.Equal(t, "Child seat: booster", b.Lines[0].Label)
	assert.Equal(t, "Child seat: infant", b.Lines[1].Label)
	assert.InDelta(t, 8.00+24.00, b.Total, 1e-9)
}

func TestCalculate_ExtraStopsCapped(t *testing.T) {
	calc := NewCalculator(DefaultPriceBook())

	b, err := calc.Calculate(Request{ExtraStops: 3}, 100)
	require.NoError(t, err)
	assert.InDelta(t, 30.00, b.Total, 1e-9)

	_, err = calc.Calculate(Request{ExtraStops: 4}, 100)
	assert.Error(t, err)
}

func TestCalculate_UnknownElections(t *testing.T) {
	calc := NewCalculator(DefaultPriceBook())

	_, err := calc.Calculate(Request{SpecialItems: []string{"piano"}}, 100)
	assert.Error(t, err)

	_, err = calc.Calculate(Request{VehicleUpgrade: "tank"}, 100)
	assert.Error(t, err)

	_, err = calc.Calculate(Request{ChildSeats: map[string]int{"adult": 1}}, 100)
	assert.Error(t, err)
}

func TestCalculate_AllOptionsAdditive(t *testing.T) {
	calc := NewCalculator(DefaultPriceBook())

	req := Request{
		TripProtection: true,
		MeetAndGreet:   true,
		LuggageCount:   4,
		SpecialItems:   []string{"ski"},
		VehicleUpgrade: "sprinter",
		ChildSeats:     map[string]int{"toddler": 1},
		ExtraStops:     2,
	}
	b, err := calc.Calculate(req, 100)
	require.NoError(t, err)

	// 15 + 25 + 10 + 10 + 50 + 12 + 20
	assert.InDelta(t, 142.00, b.Total, 1e-9)
	assert.Len(t, b.Lines, 7)
}
