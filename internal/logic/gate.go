package logic

import "time"

// AlertGate decides from the hour of day whether an alert category may fire.
// Windows are immutable after construction.
type AlertGate struct {
	loc     *time.Location
	windows map[Category]AlertWindow
}

// NewAlertGate creates a gate evaluating hours in loc (nil keeps each time's
// own location).
func NewAlertGate(loc *time.Location, windows map[Category]AlertWindow) *AlertGate {
	w := make(map[Category]AlertWindow, len(windows))
	for c, win := range windows {
		w[c] = win
	}
	return &AlertGate{loc: loc, windows: w}
}

// IsActive reports whether category may alert at now. The gate is active when
// the hour is at or below MinHour, or at or above MaxHour; i.e. outside the
// configured daytime window, boundaries included. Unknown categories are never active.
func (g *AlertGate) IsActive(category Category, now time.Time) bool {
	w, ok := g.windows[category]
	if !ok {
		return false
	}
	if g.loc != nil {
		now = now.In(g.loc)
	}
	hour := now.Hour()
	return hour <= w.MinHour || hour >= w.MaxHour
}

// Window returns the configured window for category.
func (g *AlertGate) Window(category Category) (AlertWindow, bool) {
	w, ok := g.windows[category]
	return w, ok
}
