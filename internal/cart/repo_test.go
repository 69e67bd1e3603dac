package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalrevolution/dr-backend/pkg/db/dbtest"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
)

func TestFindByIDPreloadsItemsInOrder(t *testing.T) {
	conn := dbtest.Open(t)
	guest := "guest-1"
	record := &models.Cart{GuestID: &guest}
	require.NoError(t, conn.Create(record).Error)

	first := models.CartItem{CartID: record.ID, ProductID: "p1", VariantID: "v1", Name: "Tee", UnitPriceCents: 500, Quantity: 2, CreatedAt: time.Now().UTC().Add(-time.Minute)}
	second := models.CartItem{CartID: record.ID, ProductID: "p2", VariantID: "v2", Name: "Hoodie", UnitPriceCents: 1000, Quantity: 1, CreatedAt: time.Now().UTC()}
	require.NoError(t, conn.Create(&second).Error)
	require.NoError(t, conn.Create(&first).Error)

	repo := NewRepository(conn)
	found, err := repo.FindByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Items, 2)
	assert.Equal(t, "Tee", found.Items[0].Name)
	assert.Equal(t, "Hoodie", found.Items[1].Name)
	assert.EqualValues(t, 2000, found.SubtotalCents())

	missing, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClearItemsIsIdempotent(t *testing.T) {
	conn := dbtest.Open(t)
	guest := "guest-2"
	record := &models.Cart{GuestID: &guest}
	require.NoError(t, conn.Create(record).Error)
	require.NoError(t, conn.Create(&models.CartItem{CartID: record.ID, ProductID: "p", VariantID: "v", Name: "Mug", UnitPriceCents: 800, Quantity: 1}).Error)

	repo := NewRepository(conn)
	removed, err := repo.ClearItems(context.Background(), record.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	removed, err = repo.ClearItems(context.Background(), record.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, removed)
	assert.EqualValues(t, 0, dbtest.Count(t, conn, "cart_items"))
	assert.EqualValues(t, 1, dbtest.Count(t, conn, "carts"))
}

func TestCartOwnerConstraint(t *testing.T) {
	conn := dbtest.Open(t)
	require.Error(t, conn.Create(&models.Cart{}).Error)

	user := uuid.New()
	guest := "g"
	require.Error(t, conn.Create(&models.Cart{UserID: &user, GuestID: &guest}).Error)
}
