package game

// LogCapacity bounds the action log kept on a game record.
const LogCapacity = 64

// LogEntry is one line of the action log.
type LogEntry struct {
	Sequence  int64  `json:"seq"`
	Hand      int    `json:"hand"`
	Phase     Phase  `json:"phase"`
	SeatIndex int    `json:"seat"`
	PlayerID  string `json:"player,omitempty"`
	Event     string `json:"event"`
	Amount    int    `json:"amount,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// ActionLog is an append-only ring buffer of the most recent entries. It is
// informational only and takes no part in chip accounting.
type ActionLog struct {
	Entries []LogEntry `json:"entries"`
	Next    int        `json:"next"`
}

// Append adds an entry, overwriting the oldest once full.
func (l *ActionLog) Append(e LogEntry) {
	if len(l.Entries) < LogCapacity {
		l.Entries = append(l.Entries, e)
		return
	}
	l.Entries[l.Next] = e
	l.Next = (l.Next + 1) % LogCapacity
}

// Len returns the number of retained entries.
func (l *ActionLog) Len() int { return len(l.Entries) }

// All returns the retained entries, oldest first.
func (l *ActionLog) All() []LogEntry {
	out := make([]LogEntry, 0, len(l.Entries))
	out = append(out, l.Entries[l.Next:]...)
	return append(out, l.Entries[:l.Next]...)
}

// Tail returns up to n of the newest entries, oldest first.
func (l *ActionLog) Tail(n int) []LogEntry {
	all := l.All()
	if n < len(all) {
		all = all[len(all)-n:]
	}
	return all
}

func (g *Game) logEvent(seat int, event string, amount int, detail string) {
	e := LogEntry{
		Sequence:  g.TurnSequence,
		Hand:      g.CurrentHandNumber,
		Phase:     g.Table.Phase,
		SeatIndex: seat,
		Event:     event,
		Amount:    amount,
		Detail:    detail,
	}
	if seat >= 0 && seat < len(g.Seats) {
		e.PlayerID = g.Seats[seat].PlayerID
	}
	g.Log.Append(e)
}
