package ran

// State is a UE-Manager lifecycle state (spec.md §4.1).
type State int

const (
	StateInitialRandomAccess State = iota + 1
	StateConnectionSetup
	StateConnectionRejected
	StateConnectedNormally
	StateConnectionReconfiguration
	StateConnectionReestablishment
	StateHandoverPreparation
	StateHandoverJoining
	StateHandoverPathSwitch
	StateHandoverLeaving
	StatePrepareMcConnectionReconfiguration
	StateMcConnectionReconfiguration
)

var stateNames = map[State]string{
	StateInitialRandomAccess:                "INITIAL_RANDOM_ACCESS",
	StateConnectionSetup:                    "CONNECTION_SETUP",
	StateConnectionRejected:                 "CONNECTION_REJECTED",
	StateConnectedNormally:                  "CONNECTED_NORMALLY",
	StateConnectionReconfiguration:          "CONNECTION_RECONFIGURATION",
	StateConnectionReestablishment:          "CONNECTION_REESTABLISHMENT",
	StateHandoverPreparation:                "HANDOVER_PREPARATION",
	StateHandoverJoining:                    "HANDOVER_JOINING",
	StateHandoverPathSwitch:                 "HANDOVER_PATH_SWITCH",
	StateHandoverLeaving:                    "HANDOVER_LEAVING",
	StatePrepareMcConnectionReconfiguration: "PREPARE_MC_CONNECTION_RECONFIGURATION",
	StateMcConnectionReconfiguration:        "MC_CONNECTION_RECONFIGURATION",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// HasTimer reports whether s arms one of the per-state timers in
// spec.md §4.1. Exactly one timer is ever armed per UE-Manager.
func (s State) HasTimer() bool {
	switch s {
	case StateInitialRandomAccess, StateConnectionSetup, StateConnectionRejected,
		StateHandoverJoining, StateHandoverLeaving:
		return true
	default:
		return false
	}
}
