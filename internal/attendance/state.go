package attendance

type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateTeamOpen       State = "team_open"
	StateMeetingSearch  State = "meeting_search"
	StateJoined         State = "joined"
	StateInMeeting      State = "in_meeting"
	StateLeft           State = "left"
	StateNoClass        State = "noclass"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateLeft, StateNoClass, StateFailed:
		return true
	default:
		return false
	}
}

var transitions = map[State][]State{
	StateIdle:           {StateAuthenticating},
	StateAuthenticating: {StateTeamOpen, StateFailed},
	StateTeamOpen:       {StateMeetingSearch, StateFailed},
	StateMeetingSearch:  {StateJoined, StateNoClass, StateFailed},
	StateJoined:         {StateInMeeting},
	StateInMeeting:      {StateLeft},
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
