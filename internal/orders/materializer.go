package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/pkg/db"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
	"github.com/digitalrevolution/dr-backend/pkg/types"
)

const uniqueOrderSession = "ux_orders_stripe_session_id"

// MaterializeInput is everything a completed checkout contributes to an order.
// Tax, discount, shipping and total are the processor's figures; the subtotal
// is always recomputed from the cart.
type MaterializeInput struct {
	CartID          uuid.UUID
	UserID          *uuid.UUID
	GuestID         *string
	StripeSessionID string
	PaymentIntentID *string
	Email           string
	Shipping        *pkgstripe.ContactDetails
	Customer        *pkgstripe.ContactDetails
	ShippingMethod  *string
	DiscountCents   int64
	ShippingCents   int64
	TaxCents        int64
	TotalCents      int64
	Currency        string
}

type MaterializerParams struct {
	Tx      txRunner
	Orders  Repository
	Carts   cartReader
	Numbers *NumberGenerator
}

// Materializer turns a paid cart into an Order with frozen OrderItems.
type Materializer struct {
	tx      txRunner
	orders  Repository
	carts   cartReader
	numbers *NumberGenerator
}

func NewMaterializer(params MaterializerParams) (*Materializer, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = NewNumberGenerator()
	}
	return &Materializer{tx: params.Tx, orders: params.Orders, carts: params.Carts, numbers: numbers}, nil
}

// Materialize writes the order and its items in one transaction. A missing
// cart fails with ErrCartNotFound before anything is written; a second
// materialization for the same processor session fails with CodeConflict.
func (m *Materializer) Materialize(ctx context.Context, input MaterializeInput) (*models.Order, error) {
	if (input.UserID == nil) == (input.GuestID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires exactly one of user id or guest id")
	}
	if strings.TrimSpace(input.StripeSessionID) == "" {
		return nil, pkgerrors.MissingMetadata("stripe_session_id")
	}

	record, err := m.carts.FindByID(ctx, input.CartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if record == nil {
		return nil, pkgerrors.NotFound(pkgerrors.ErrCartNotFound, input.CartID.String())
	}

	address := ResolveShippingAddress(input.Shipping, input.Customer)

	number, err := m.numbers.Next()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order number")
	}

	email := strings.TrimSpace(input.Email)
	if email == "" && input.Customer != nil {
		email = strings.TrimSpace(input.Customer.Email)
	}

	order := &models.Order{
		ID:                    uuid.New(),
		OrderNumber:           number,
		UserID:                input.UserID,
		GuestID:               input.GuestID,
		CustomerEmail:         email,
		CustomerName:          address.FullName(),
		CustomerPhone:         address.Phone,
		ShippingAddress:       address,
		ShippingMethod:        input.ShippingMethod,
		ShippingCents:         input.ShippingCents,
		SubtotalCents:         record.SubtotalCents(),
		DiscountCents:         input.DiscountCents,
		TaxCents:              input.TaxCents,
		TotalCents:            input.TotalCents,
		Currency:              enums.NormalizeCurrency(input.Currency),
		StripeSessionID:       input.StripeSessionID,
		StripePaymentIntentID: input.PaymentIntentID,
		Status:                enums.OrderStatusProcessing,
	}
	items := snapshotItems(order.ID, record.Items)

	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.orders.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		return repo.CreateItems(ctx, items)
	})
	if err != nil {
		if db.IsUniqueViolation(err, uniqueOrderSession) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists for checkout session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist order")
	}

	order.Items = items
	return order, nil
}

func snapshotItems(orderID uuid.UUID, cartItems []models.CartItem) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(cartItems))
	for _, item := range cartItems {
		images := types.StringList{}
		if item.ImageURL != nil && *item.ImageURL != "" {
			images = append(images, *item.ImageURL)
		}
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			OrderID:        orderID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			ProductName:    item.Name,
			Size:           item.Size,
			Color:          item.Color,
			SKU:            item.SKU,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.LineTotalCents(),
			Images:         images,
		})
	}
	return items
}
