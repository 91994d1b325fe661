package game

import "encoding/json"

// Phase is the lifecycle state of a match session. Transitions are
// monotonic: Waiting -> Playing -> {Ended, Aborted}. A session never
// returns to Waiting and never leaves a terminal phase.
type Phase int

const (
	Waiting Phase = iota
	Playing
	Ended
	Aborted
)

var phaseNames = map[Phase]string{
	Waiting: "waiting",
	Playing: "playing",
	Ended:   "ended",
	Aborted: "aborted",
}

var phaseFromName = map[string]Phase{
	"waiting": Waiting,
	"playing": Playing,
	"ended":   Ended,
	"aborted": Aborted,
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := phaseFromName[s]; ok {
		*p = v
	}
	return nil
}

func (p Phase) IsTerminal() bool {
	return p == Ended || p == Aborted
}
