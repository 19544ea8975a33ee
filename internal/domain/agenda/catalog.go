package agenda

import (
	"fmt"
	"strings"
)

// Slot is one bookable one-hour window of the working day.
type Slot struct {
	Hour  int    `json:"hour"`
	Label string `json:"label"`
}

// Window returns the display window, e.g. "09:00 - 10:00".
func (s Slot) Window() string {
	return fmt.Sprintf("%02d:00 - %02d:00", s.Hour, s.Hour+1)
}

// SlotDuration is the length of every catalog slot in minutes.
const SlotDuration = 60

// Morning block starts at 9, afternoon block at 16. Four slots each.
var blocks = [][2]int{{9, 13}, {16, 20}}

var catalog = buildCatalog()

func buildCatalog() []Slot {
	var slots []Slot
	for _, b := range blocks {
		for h := b[0]; h < b[1]; h++ {
			slots = append(slots, Slot{Hour: h, Label: fmt.Sprintf("%02d:00", h)})
		}
	}
	return slots
}

// Slots returns the catalog in display order. The returned slice is a copy.
func Slots() []Slot {
	out := make([]Slot, len(catalog))
	copy(out, catalog)
	return out
}

// Windows returns every catalog window string in catalog order.
func Windows() []string {
	out := make([]string, len(catalog))
	for i, s := range catalog {
		out[i] = s.Window()
	}
	return out
}

// FirstHour is the hour of the earliest catalog slot.
func FirstHour() int { return catalog[0].Hour }

// LookupWindow resolves a window string to its catalog slot. Besides the
// display form "09:00 - 10:00" it accepts "09:00-10:00" and the short "9-10".
func LookupWindow(w string) (Slot, bool) {
	norm := compactWindow(w)
	for _, s := range catalog {
		if compactWindow(s.Window()) == norm {
			return s, true
		}
	}
	return Slot{}, false
}

// NormalizeWindow returns the canonical catalog form of w.
func NormalizeWindow(w string) (string, error) {
	s, ok := LookupWindow(w)
	if !ok {
		return "", ErrInvalidWindow
	}
	return s.Window(), nil
}

func compactWindow(w string) string {
	w = strings.ReplaceAll(strings.TrimSpace(w), " ", "")
	from, to, ok := strings.Cut(w, "-")
	if !ok {
		return w
	}
	return clock(from) + "-" + clock(to)
}

// clock expands "9" and "9:00" to "09:00".
func clock(p string) string {
	if !strings.Contains(p, ":") {
		p += ":00"
	}
	if len(p) == 4 {
		p = "0" + p
	}
	return p
}
