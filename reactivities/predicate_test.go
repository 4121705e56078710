package reactivities

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestPredicateSingleDimension(t *testing.T) {
	predicate := NewPredicate()
	assert.Equal(t, len(predicate.Keys()), 0)

	predicate.Set(PredicateIsGoing, "true")
	assert.Equal(t, predicate.Keys(), []string{PredicateIsGoing})

	// setting a new dimension clears the old one
	predicate.Set(PredicateIsHost, "true")
	assert.Equal(t, predicate.Keys(), []string{PredicateIsHost})

	// "all" means unfiltered
	predicate.Set(PredicateAll, "true")
	assert.Equal(t, len(predicate.Keys()), 0)
}

func TestPaginationQuery(t *testing.T) {
	predicate := NewPredicate()
	pagination := NewPagination(5)

	query := pagination.Query(predicate)
	assert.Equal(t, query.Get("limit"), "5")
	assert.Equal(t, query.Get("offset"), "0")

	pagination.SetPage(2)
	query = pagination.Query(predicate)
	assert.Equal(t, query.Get("offset"), "10")

	startDate := time.Date(2021, 3, 5, 14, 30, 0, 0, time.UTC)
	predicate.Set(PredicateStartDate, startDate)
	query = pagination.Query(predicate)
	assert.Equal(t, query.Get(PredicateStartDate), "2021-03-05T14:30:00Z")

	predicate.Set("category", "music")
	query = pagination.Query(predicate)
	assert.Equal(t, query.Get("category"), "music")
	assert.Equal(t, query.Get(PredicateStartDate), "")
}

func TestPaginationTotals(t *testing.T) {
	pagination := NewPagination(5)

	// nothing known yet
	assert.Equal(t, pagination.TotalPages(), 0)
	assert.Equal(t, pagination.HasMore(), false)

	pagination.SetTotal(12)
	assert.Equal(t, pagination.TotalPages(), 3)
	assert.Equal(t, pagination.HasMore(), true)

	pagination.SetPage(2)
	assert.Equal(t, pagination.HasMore(), false)

	pagination.SetTotal(10)
	assert.Equal(t, pagination.TotalPages(), 2)

	pagination.Reset()
	assert.Equal(t, pagination.Page(), 0)
	assert.Equal(t, pagination.HasMore(), false)
}
