package hub

// StatusOnline is the only status a roster member can have.
const StatusOnline = "online"

// DefaultColor is used when user_join does not carry a color.
const DefaultColor = "#3b82f6"

// palette is cycled through for users who join without a color.
var palette = []string{"red", "blue", "green", "orange", "purple"}

// Member is one user in the presence roster of a sheet.
type Member struct {
	UserID     string  `json:"userId"`
	Username   string  `json:"username"`
	Color      string  `json:"color"`
	Status     string  `json:"status"`
	LastActive float64 `json:"lastActive"`
}

type rosterEntry struct {
	member Member
	refs   int
}

// roster tracks the users joined to a sheet in join order. A user id bound
// by several sessions is counted once and stays until its last session leaves.
type roster struct {
	order   []string
	entries map[string]*rosterEntry
}

func newRoster() *roster {
	return &roster{entries: make(map[string]*rosterEntry)}
}

// add binds one more session to m.UserID, refreshing its details.
func (r *roster) add(m Member) {
	m.Status = StatusOnline
	if e, ok := r.entries[m.UserID]; ok {
		e.member = m
		e.refs++
		return
	}
	r.entries[m.UserID] = &rosterEntry{member: m, refs: 1}
	r.order = append(r.order, m.UserID)
}

// remove releases one session of userID and reports whether the user left.
func (r *roster) remove(userID string) bool {
	e, ok := r.entries[userID]
	if !ok {
		return false
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	delete(r.entries, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// list returns the members in join order.
func (r *roster) list() []Member {
	out := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].member)
	}
	return out
}

// nextColor picks the palette color for the next new member.
func (r *roster) nextColor() string {
	return palette[len(r.order)%len(palette)]
}
