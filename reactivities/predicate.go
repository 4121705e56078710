package reactivities

import (
	"net/url"
	"strconv"
	"time"

	"golang.org/x/exp/maps"
)

const DefaultLimit = 5

const PredicateAll = "all"
const PredicateIsGoing = "isGoing"
const PredicateIsHost = "isHost"
const PredicateStartDate = "startDate"

// the active filter dimension. exactly one non-"all" key may be active
// at a time, selecting "all" clears everything.
// values are string or time.Time.
type Predicate struct {
	values map[string]any
}

func NewPredicate() *Predicate {
	return &Predicate{
		values: map[string]any{},
	}
}

func (self *Predicate) Set(key string, value any) {
	maps.Clear(self.values)
	if key != PredicateAll {
		self.values[key] = value
	}
}

func (self *Predicate) Keys() []string {
	return maps.Keys(self.values)
}

func (self *Predicate) apply(query url.Values) {
	for key, value := range self.values {
		switch v := value.(type) {
		case time.Time:
			query.Set(key, v.Format(time.RFC3339))
		case string:
			query.Set(key, v)
		}
	}
}

// zero-based page over a fixed limit. the total comes back with every
// successful list fetch.
type Pagination struct {
	page  int
	limit int
	total int
}

func NewPagination(limit int) *Pagination {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pagination{
		limit: limit,
	}
}

func (self *Pagination) Page() int {
	return self.page
}

func (self *Pagination) SetPage(page int) {
	self.page = page
}

func (self *Pagination) SetTotal(total int) {
	self.total = total
}

func (self *Pagination) Total() int {
	return self.total
}

func (self *Pagination) TotalPages() int {
	return (self.total + self.limit - 1) / self.limit
}

func (self *Pagination) HasMore() bool {
	return self.page+1 < self.TotalPages()
}

func (self *Pagination) Reset() {
	self.page = 0
	self.total = 0
}

// the (predicate, page) window as request params
func (self *Pagination) Query(predicate *Predicate) url.Values {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(self.limit))
	query.Set("offset", strconv.Itoa(self.page*self.limit))
	if predicate != nil {
		predicate.apply(query)
	}
	return query
}
