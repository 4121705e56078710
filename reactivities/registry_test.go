package reactivities

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func testActivity(title string, date time.Time) *Activity {
	return &Activity{
		Id:    NewId(),
		Title: title,
		Date:  date,
	}
}

func TestGroupedByDate(t *testing.T) {
	registry := NewRegistry()

	day1 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.Local)
	day2 := time.Date(2021, 1, 2, 0, 0, 0, 0, time.Local)

	// inserted out of order on purpose
	lateDay2 := testActivity("late day2", day2.Add(18*time.Hour))
	earlyDay2 := testActivity("early day2", day2.Add(9*time.Hour))
	lateDay1 := testActivity("late day1", day1.Add(20*time.Hour))
	earlyDay1 := testActivity("early day1", day1.Add(8*time.Hour))

	registry.Upsert(lateDay2)
	registry.Upsert(earlyDay1)
	registry.Upsert(lateDay1)
	registry.Upsert(earlyDay2)

	groups := registry.GroupedByDate()
	assert.Equal(t, len(groups), 2)

	assert.Equal(t, groups[0].Date, "2021-01-01")
	assert.Equal(t, len(groups[0].Activities), 2)
	assert.Equal(t, groups[0].Activities[0].Title, "early day1")
	assert.Equal(t, groups[0].Activities[1].Title, "late day1")

	assert.Equal(t, groups[1].Date, "2021-01-02")
	assert.Equal(t, len(groups[1].Activities), 2)
	assert.Equal(t, groups[1].Activities[0].Title, "early day2")
	assert.Equal(t, groups[1].Activities[1].Title, "late day2")

	// idempotent, two reads without mutation agree
	again := registry.GroupedByDate()
	assert.Equal(t, len(again), len(groups))
	for i := range groups {
		assert.Equal(t, again[i].Date, groups[i].Date)
		for j := range groups[i].Activities {
			assert.Equal(t, again[i].Activities[j].Id, groups[i].Activities[j].Id)
		}
	}
}

func TestRegistryUpsertReplacesWholesale(t *testing.T) {
	registry := NewRegistry()

	activity := testActivity("before", time.Now())
	registry.Upsert(activity)

	update := activity.Clone()
	update.Title = "after"
	registry.Upsert(update)

	assert.Equal(t, registry.Len(), 1)
	assert.Equal(t, registry.Get(activity.Id).Title, "after")
}

func TestRegistryUpdate(t *testing.T) {
	registry := NewRegistry()

	changes := 0
	done := registry.AddChangeCallback(func() {
		changes += 1
	})
	defer done()

	activity := testActivity("a", time.Now())
	registry.Upsert(activity)
	assert.Equal(t, changes, 1)

	applied := registry.Update(activity.Id, func(stored *Activity) {
		stored.Comments = append(stored.Comments, &Comment{Body: "hello"})
	})
	assert.Equal(t, applied, true)
	assert.Equal(t, changes, 2)
	assert.Equal(t, len(registry.Get(activity.Id).Comments), 1)

	// absent record, nothing applied, no notification
	applied = registry.Update(NewId(), func(stored *Activity) {
		stored.Title = "never"
	})
	assert.Equal(t, applied, false)
	assert.Equal(t, changes, 2)
}

func TestRegistryChangeCallback(t *testing.T) {
	registry := NewRegistry()

	changes := 0
	done := registry.AddChangeCallback(func() {
		changes += 1
	})

	activity := testActivity("a", time.Now())
	registry.Upsert(activity)
	assert.Equal(t, changes, 1)

	registry.Remove(activity.Id)
	assert.Equal(t, changes, 2)

	// no entry, no notification
	registry.Remove(activity.Id)
	assert.Equal(t, changes, 2)

	// empty clear is silent too
	registry.Clear()
	assert.Equal(t, changes, 2)

	done()
	registry.Upsert(activity)
	assert.Equal(t, changes, 2)
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	registry := NewRegistry()

	activity := testActivity("a", time.Now())
	activity.Attendees = []*Attendee{{Username: "bob"}}
	registry.Upsert(activity)

	// mutating the caller's copy after upsert does not reach the registry
	activity.Attendees[0].Username = "mallory"
	assert.Equal(t, registry.Get(activity.Id).Attendees[0].Username, "bob")

	// mutating a read copy does not reach the registry
	read := registry.Get(activity.Id)
	read.Title = "changed"
	assert.Equal(t, registry.Get(activity.Id).Title, "a")
}
