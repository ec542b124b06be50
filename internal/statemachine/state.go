package statemachine

// State names one node of the nightly operation machine.
type State string

// States of the machine. Exactly one is active at a time.
const (
	StateStarting             State = "starting"
	StateReady                State = "ready"
	StateScheduling           State = "scheduling"
	StateSlewing              State = "slewing"
	StatePreparing            State = "preparing"
	StateFocusing             State = "focusing"
	StateObserving            State = "observing"
	StateAnalyzing            State = "analyzing"
	StateDithering            State = "dithering"
	StateParking              State = "parking"
	StateParked               State = "parked"
	StateHousekeeping         State = "housekeeping"
	StateSleeping             State = "sleeping"
	StateTakingDarks          State = "taking_darks"
	StateTwilightFlatFielding State = "twilight_flat_fielding"
)

// Horizon names used for darkness checks.
const (
	HorizonStartup = "startup"
	HorizonFlat    = "flat"
	HorizonFocus   = "focus"
	HorizonObserve = "observe"
)

// AllStates lists every state in table order.
var AllStates = []State{
	StateStarting,
	StateReady,
	StateScheduling,
	StateSlewing,
	StatePreparing,
	StateFocusing,
	StateObserving,
	StateAnalyzing,
	StateDithering,
	StateParking,
	StateParked,
	StateHousekeeping,
	StateSleeping,
	StateTakingDarks,
	StateTwilightFlatFielding,
}

var parkingFamily = map[State]bool{
	StateParking:      true,
	StateParked:       true,
	StateHousekeeping: true,
	StateSleeping:     true,
	StateTakingDarks:  true,
}

// Valid reports whether s is a member of the state set.
func (s State) Valid() bool {
	for _, st := range AllStates {
		if s == st {
			return true
		}
	}
	return false
}

// Parking reports whether s belongs to the parking family: states that
// run with the observatory closed and are never forced back into parking.
func (s State) Parking() bool {
	return parkingFamily[s]
}

// Horizon returns the darkness horizon that must be safe to enter s.
func (s State) Horizon() string {
	switch s {
	case StateFocusing:
		return HorizonFocus
	case StateTwilightFlatFielding:
		return HorizonFlat
	case StateStarting, StateReady:
		return HorizonStartup
	default:
		return HorizonObserve
	}
}

// String implements fmt.Stringer.
func (s State) String() string { return string(s) }
