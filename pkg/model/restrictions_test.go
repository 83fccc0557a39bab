package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRestrictions_Allows(t *testing.T) {
	var unrestricted Restrictions
	assert.True(t, unrestricted.Allows("any", "thing"))

	r := NewRestrictions([]PolicyRestriction{
		{Index: "index-yellow-taxi", Collections: []string{"foo", "bar"}},
		{Index: "open"},
	})
	assert.True(t, r.Allows("index-yellow-taxi", "foo"))
	assert.False(t, r.Allows("index-yellow-taxi", "baz"))
	assert.True(t, r.Allows("open", "whatever"))
	assert.False(t, r.Allows("other", "foo"))
	assert.Len(t, r.List(), 2)

	assert.Nil(t, NewRestrictions(nil))
	assert.Nil(t, unrestricted.List())
}
