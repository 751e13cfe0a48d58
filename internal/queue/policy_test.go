package queue

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sev(n int) *int { return &n }

func TestLessSeverityFirst(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Менее срочный пришёл раньше — всё равно позади.
	a := &Entry{ID: "a", Severity: sev(3), ScheduledAt: base}
	c := &Entry{ID: "c", Severity: sev(1), ScheduledAt: base.Add(90 * time.Minute)}

	assert.True(t, Less(c, a))
	assert.False(t, Less(a, c))
}

func TestLessScheduledTimeBreaksTie(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	early := &Entry{ID: "b", Severity: sev(2), ScheduledAt: base}
	late := &Entry{ID: "a", Severity: sev(2), ScheduledAt: base.Add(time.Hour)}

	assert.True(t, Less(early, late))
	assert.False(t, Less(late, early))
}

func TestLessIDBreaksFullTie(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	x := &Entry{ID: "enc-1", Severity: sev(4), ScheduledAt: base}
	y := &Entry{ID: "enc-2", Severity: sev(4), ScheduledAt: base}

	// Полный порядок: при совпадении severity и времени решает идентификатор.
	assert.True(t, Less(x, y))
	assert.False(t, Less(y, x))
}

func TestLessSortIsDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	build := func(ids ...string) []*Entry {
		out := []*Entry{
			{ID: "a", Severity: sev(3), ScheduledAt: base},
			{ID: "b", Severity: sev(2), ScheduledAt: base.Add(time.Hour)},
			{ID: "c", Severity: sev(1), ScheduledAt: base.Add(90 * time.Minute)},
			{ID: "d", Severity: sev(2), ScheduledAt: base.Add(time.Hour)},
		}
		sorted := make([]*Entry, 0, len(out))
		for _, id := range ids {
			for _, e := range out {
				if e.ID == id {
					sorted = append(sorted, e)
				}
			}
		}
		return sorted
	}

	// Любой порядок вставки даёт один и тот же итоговый порядок.
	first := build("a", "b", "c", "d")
	second := build("d", "c", "b", "a")
	sort.Slice(first, func(i, j int) bool { return Less(first[i], first[j]) })
	sort.Slice(second, func(i, j int) bool { return Less(second[i], second[j]) })

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
	assert.Equal(t, "c", first[0].ID)
	assert.Equal(t, "b", first[1].ID)
	assert.Equal(t, "d", first[2].ID)
	assert.Equal(t, "a", first[3].ID)
}
