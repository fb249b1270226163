package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestVisitCreateValidate(t *testing.T) {
	valid := func() VisitCreate {
		return VisitCreate{
			PlaceID:   uuid.New(),
			Rating:    4,
			Comment:   "great ramen",
			VisitedAt: time.Now(),
		}
	}

	t.Run("valid payload", func(t *testing.T) {
		v := valid()
		assert.NoError(t, v.Validate())
	})

	t.Run("missing place", func(t *testing.T) {
		v := valid()
		v.PlaceID = uuid.Nil
		assert.ErrorIs(t, v.Validate(), ErrPlaceRequired)
	})

	t.Run("rating bounds", func(t *testing.T) {
		for _, rating := range []int{0, -1, 6, 100} {
			v := valid()
			v.Rating = rating
			assert.ErrorIs(t, v.Validate(), ErrInvalidRating, "rating %d", rating)
		}
		for rating := 1; rating <= 5; rating++ {
			v := valid()
			v.Rating = rating
			assert.NoError(t, v.Validate(), "rating %d", rating)
		}
	})

	t.Run("comment length", func(t *testing.T) {
		v := valid()
		v.Comment = strings.Repeat("a", MaxCommentLength)
		assert.NoError(t, v.Validate())

		v.Comment += "a"
		assert.ErrorIs(t, v.Validate(), ErrCommentTooLong)
	})
}

func TestVisitUpdateValidate(t *testing.T) {
	intPtr := func(n int) *int { return &n }
	strPtr := func(s string) *string { return &s }

	t.Run("empty update", func(t *testing.T) {
		u := VisitUpdate{}
		assert.NoError(t, u.Validate())
		assert.True(t, u.Empty())
	})

	t.Run("rating only", func(t *testing.T) {
		u := VisitUpdate{Rating: intPtr(3)}
		assert.NoError(t, u.Validate())
		assert.False(t, u.Empty())
	})

	t.Run("bad rating", func(t *testing.T) {
		u := VisitUpdate{Rating: intPtr(0)}
		assert.ErrorIs(t, u.Validate(), ErrInvalidRating)
	})

	t.Run("long comment", func(t *testing.T) {
		long := strings.Repeat("b", MaxCommentLength+1)
		u := VisitUpdate{Comment: strPtr(long)}
		assert.ErrorIs(t, u.Validate(), ErrCommentTooLong)
	})
}

func TestFollowCreateValidate(t *testing.T) {
	me := uuid.New()

	t.Run("valid", func(t *testing.T) {
		f := FollowCreate{FolloweeID: uuid.New()}
		assert.NoError(t, f.Validate(me))
	})

	t.Run("self follow", func(t *testing.T) {
		f := FollowCreate{FolloweeID: me}
		assert.ErrorIs(t, f.Validate(me), ErrSelfFollow)
	})

	t.Run("missing followee", func(t *testing.T) {
		f := FollowCreate{}
		assert.ErrorIs(t, f.Validate(me), ErrUserRequired)
	})
}

func TestListItemCreateValidate(t *testing.T) {
	assert.NoError(t, (&ListItemCreate{PlaceID: uuid.New()}).Validate())
	assert.ErrorIs(t, (&ListItemCreate{}).Validate(), ErrPlaceRequired)
}

func TestNormalizeComment(t *testing.T) {
	assert.Equal(t, "hello", NormalizeComment("  hello \n"))
	assert.Equal(t, "", NormalizeComment("   "))
}
