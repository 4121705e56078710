package reactivities

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type ChangeFunction = func()

// id-keyed cache of the best known activity records.
// entries are replaced wholesale per id, except the sanctioned partial
// mutations (attendee splice, comment append) which go through `Update`.
type Registry struct {
	stateLock sync.Mutex

	activities map[Id]*Activity

	changeCallbacks *CallbackList[ChangeFunction]
}

func NewRegistry() *Registry {
	return &Registry{
		activities:      map[Id]*Activity{},
		changeCallbacks: NewCallbackList[ChangeFunction](),
	}
}

// a callback observes only fully applied mutations
func (self *Registry) AddChangeCallback(changeCallback ChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *Registry) change() {
	for _, callback := range self.changeCallbacks.Get() {
		callback()
	}
}

func (self *Registry) Upsert(activity *Activity) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.activities[activity.Id] = activity.Clone()
	}()
	self.change()
}

func (self *Registry) Remove(activityId Id) {
	removed := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if _, ok := self.activities[activityId]; ok {
			delete(self.activities, activityId)
			removed = true
		}
	}()
	if removed {
		self.change()
	}
}

func (self *Registry) Clear() {
	cleared := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if 0 < len(self.activities) {
			self.activities = map[Id]*Activity{}
			cleared = true
		}
	}()
	if cleared {
		self.change()
	}
}

// applies a field-level mutation to the stored record under the
// registry lock. this is the path for the sanctioned partial mutations
// (attendee splice, comment append), so a splice can never overwrite
// a concurrent one with a stale snapshot. returns false when the
// record is absent.
func (self *Registry) Update(activityId Id, update func(activity *Activity)) bool {
	applied := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if activity, ok := self.activities[activityId]; ok {
			update(activity)
			applied = true
		}
	}()
	if applied {
		self.change()
	}
	return applied
}

func (self *Registry) Get(activityId Id) *Activity {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if activity, ok := self.activities[activityId]; ok {
		return activity.Clone()
	}
	return nil
}

func (self *Registry) Len() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.activities)
}

// order unspecified
func (self *Registry) Values() []*Activity {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	values := make([]*Activity, 0, len(self.activities))
	for _, activity := range maps.Values(self.activities) {
		values = append(values, activity.Clone())
	}
	return values
}

type DateGroup struct {
	// calendar date, `2006-01-02`
	Date       string
	Activities []*Activity
}

// ascending date buckets, ascending schedule time inside each bucket.
// recomputed from scratch on every read. the registry is bounded by the
// loaded pages, so a single pass beats maintaining an index.
func (self *Registry) GroupedByDate() []DateGroup {
	activities := self.Values()

	slices.SortStableFunc(activities, func(a *Activity, b *Activity) int {
		return a.Date.Compare(b.Date)
	})

	groups := []DateGroup{}
	for _, activity := range activities {
		date := activity.Date.Format("2006-01-02")
		if n := len(groups); 0 < n && groups[n-1].Date == date {
			groups[n-1].Activities = append(groups[n-1].Activities, activity)
		} else {
			groups = append(groups, DateGroup{
				Date:       date,
				Activities: []*Activity{activity},
			})
		}
	}
	return groups
}
