// pkg/njdot/pagination_test.go

package njdot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPager(t *testing.T) {
	p := NewPager(25)
	assert.Equal(t, Pagination{Page: 0, PerPage: 25}, p.State())

	require.NoError(t, p.SetPage(3))
	assert.Equal(t, Pagination{Page: 3, PerPage: 25}, p.State())
	assert.Equal(t, 75, p.State().Offset())

	// changing the page size goes back to the first page
	require.NoError(t, p.SetPerPage(10))
	assert.Equal(t, Pagination{Page: 0, PerPage: 10}, p.State())

	// setting the same size is not a change
	require.NoError(t, p.SetPage(2))
	require.NoError(t, p.SetPerPage(10))
	assert.Equal(t, Pagination{Page: 2, PerPage: 10}, p.State())

	err := p.SetPage(-1)
	assert.Equal(t, KindInvalidPagination, KindOf(err))
	err = p.SetPerPage(0)
	assert.Equal(t, KindInvalidPagination, KindOf(err))
	// failed updates leave the state alone
	assert.Equal(t, Pagination{Page: 2, PerPage: 10}, p.State())

	p.SetTotal(101)
	assert.Equal(t, 11, p.Pages())
	p.SetTotal(0)
	assert.Equal(t, 0, p.Pages())
}

func TestPagerDefault(t *testing.T) {
	p := NewPager(0)
	assert.Equal(t, DefaultPerPage, p.State().PerPage)
}

func TestPaginationValidate(t *testing.T) {
	assert.NoError(t, Pagination{Page: 0, PerPage: 1}.Validate())
	assert.Equal(t, KindInvalidPagination, KindOf(Pagination{Page: -1, PerPage: 10}.Validate()))
	assert.Equal(t, KindInvalidPagination, KindOf(Pagination{Page: 0, PerPage: 0}.Validate()))
	assert.Equal(t, KindInvalidPagination, KindOf(Pagination{Page: 0, PerPage: -5}.Validate()))
	assert.Equal(t, 40, Pagination{Page: 2, PerPage: 20}.Offset())
}
