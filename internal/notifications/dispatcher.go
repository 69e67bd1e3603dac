package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	"github.com/digitalrevolution/dr-backend/pkg/mailer"
)

const degradedStep = "email"

type degradedRecorder interface {
	IncDegraded(step string)
}

// Dispatcher renders and sends transactional emails. Every method is best
// effort: by the time it runs the state change has committed, so failures are
// logged and counted, never returned.
type Dispatcher struct {
	sender   mailer.Sender
	renderer *renderer
	logg     *logger.Logger
	metrics  degradedRecorder
}

func NewDispatcher(sender mailer.Sender, logg *logger.Logger, metrics degradedRecorder) (*Dispatcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{sender: sender, renderer: r, logg: logg, metrics: metrics}, nil
}

type orderView struct {
	Order    *models.Order
	Currency enums.Currency
}

type donationView struct {
	Donation *models.Donation
	Name     string
	Currency enums.Currency
}

type subscriptionView struct {
	User         *models.User
	Subscription *models.Subscription
	Payment      *models.SubscriptionPayment
	Currency     enums.Currency
}

func (d *Dispatcher) OrderConfirmation(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	d.send(ctx, tmplOrderConfirmation, recipient{email: order.CustomerEmail, name: order.CustomerName},
		fmt.Sprintf("Order confirmed: %s", order.OrderNumber),
		fmt.Sprintf("Thank you for your order %s. Total %s.", order.OrderNumber, formatMoney(order.TotalCents, order.Currency)),
		orderView{Order: order, Currency: order.Currency})
}

func (d *Dispatcher) ShipmentNotice(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	text := fmt.Sprintf("Your order %s has shipped.", order.OrderNumber)
	if order.TrackingNumber != nil {
		text += " Tracking number: " + *order.TrackingNumber + "."
	}
	d.send(ctx, tmplShipmentNotice, recipient{email: order.CustomerEmail, name: order.CustomerName},
		fmt.Sprintf("Your order %s has shipped", order.OrderNumber), text,
		orderView{Order: order, Currency: order.Currency})
}

func (d *Dispatcher) DonationReceipt(ctx context.Context, donation *models.Donation) {
	if donation == nil {
		return
	}
	name := ""
	if donation.DonorName != nil && !donation.Anonymous {
		name = strings.TrimSpace(*donation.DonorName)
	}
	email := ""
	if donation.DonorEmail != nil {
		email = *donation.DonorEmail
	}
	d.send(ctx, tmplDonationReceipt, recipient{email: email, name: name},
		"Thank you for your donation",
		fmt.Sprintf("Thank you for your gift of %s.", formatMoney(donation.AmountCents, donation.Currency)),
		donationView{Donation: donation, Name: name, Currency: donation.Currency})
}

func (d *Dispatcher) SubscriptionConfirmation(ctx context.Context, user *models.User, sub *models.Subscription) {
	if user == nil || sub == nil {
		return
	}
	d.send(ctx, tmplSubscriptionConfirmed, recipient{email: user.Email, name: user.FullName()},
		"Your recurring donation is active",
		fmt.Sprintf("Your recurring donation of %s per %s is active.", formatMoney(sub.AmountCents, sub.Currency), sub.Interval),
		subscriptionView{User: user, Subscription: sub, Currency: sub.Currency})
}

func (d *Dispatcher) SubscriptionCancellation(ctx context.Context, user *models.User, sub *models.Subscription) {
	if user == nil || sub == nil {
		return
	}
	d.send(ctx, tmplSubscriptionCancelled, recipient{email: user.Email, name: user.FullName()},
		"Your recurring donation was cancelled",
		"Your recurring donation has been cancelled. Thank you for your support.",
		subscriptionView{User: user, Subscription: sub, Currency: sub.Currency})
}

func (d *Dispatcher) SubscriptionPaymentReceipt(ctx context.Context, user *models.User, sub *models.Subscription, payment *models.SubscriptionPayment) {
	if user == nil || sub == nil || payment == nil {
		return
	}
	d.send(ctx, tmplSubscriptionPaymentPaid, recipient{email: user.Email, name: user.FullName()},
		"Receipt for your recurring donation",
		fmt.Sprintf("We received your recurring donation of %s.", formatMoney(payment.AmountCents, payment.Currency)),
		subscriptionView{User: user, Subscription: sub, Payment: payment, Currency: payment.Currency})
}

type recipient struct {
	email string
	name  string
}

func (d *Dispatcher) send(ctx context.Context, tmpl string, to recipient, subject, text string, data any) {
	ctx = d.logg.WithField(ctx, "email_template", tmpl)
	if strings.TrimSpace(to.email) == "" {
		d.logg.Warn(ctx, "email skipped: no recipient address")
		return
	}
	html, err := d.renderer.render(tmpl, data)
	if err != nil {
		d.fail(ctx, err)
		return
	}
	err = d.sender.Send(ctx, mailer.Message{
		ToEmail: strings.TrimSpace(to.email),
		ToName:  to.name,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		d.fail(ctx, err)
		return
	}
	d.logg.Info(ctx, "email sent")
}

func (d *Dispatcher) fail(ctx context.Context, err error) {
	d.logg.Error(ctx, "email send failed", err)
	if d.metrics != nil {
		d.metrics.IncDegraded(degradedStep)
	}
}
