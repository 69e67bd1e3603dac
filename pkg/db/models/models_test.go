package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCartSubtotal(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{UnitPriceCents: 500, Quantity: 2},
		{UnitPriceCents: 1000, Quantity: 1},
	}}
	require.EqualValues(t, 2000, cart.SubtotalCents())
}

func TestCartOwnedBy(t *testing.T) {
	userID := uuid.New()
	other := uuid.New()
	guest := "guest-1"

	userCart := Cart{UserID: &userID}
	require.True(t, userCart.OwnedBy(&userID, nil))
	require.False(t, userCart.OwnedBy(&other, nil))
	require.False(t, userCart.OwnedBy(nil, &guest))

	guestCart := Cart{GuestID: &guest}
	require.True(t, guestCart.OwnedBy(nil, &guest))
	require.False(t, guestCart.OwnedBy(&userID, nil))

	require.False(t, Cart{}.OwnedBy(&userID, &guest))
}

func TestBeforeCreateAssignsMissingID(t *testing.T) {
	order := &Order{}
	require.NoError(t, order.BeforeCreate(nil))
	require.NotEqual(t, uuid.Nil, order.ID)

	fixed := uuid.New()
	item := &OrderItem{ID: fixed}
	require.NoError(t, item.BeforeCreate(nil))
	require.Equal(t, fixed, item.ID)
}
