package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mesnalabs/mesna-bot/internal/backup"
	"github.com/mesnalabs/mesna-bot/internal/events"
	"github.com/mesnalabs/mesna-bot/internal/order"
	"github.com/mesnalabs/mesna-bot/internal/profile"
	"github.com/mesnalabs/mesna-bot/internal/settings"
)

// Ledger is the durable remote order ledger (the spreadsheet).
type Ledger interface {
	AppendOrder(ctx context.Context, customerID string, o order.Order) error
}

// Notifier delivers the admin alert over the customer transport.
type Notifier interface {
	SendToPhone(ctx context.Context, phone, text string) error
}

// Publisher pushes live events to dashboard observers.
type Publisher interface {
	Publish(subject string, data any) error
}

// Report records the independent outcome of every sink for one order. A nil
// field means that sink succeeded (or was not configured).
type Report struct {
	OrderID   string
	Profile   error
	Ledger    error
	Backup    error
	Admin     error
	Dashboard error
}

// Dispatcher fans a finalized order out to its sinks. Failures are isolated:
// each is logged and recorded, none aborts the others, and nothing here ever
// reaches the customer-facing reply path. Availability over consistency.
type Dispatcher struct {
	profiles *profile.Store
	settings *settings.Store
	backup   *backup.Store
	ledger   Ledger
	notifier Notifier
	events   Publisher
	logger   *slog.Logger
}

func NewDispatcher(
	profiles *profile.Store,
	st *settings.Store,
	bk *backup.Store,
	ledger Ledger,
	notifier Notifier,
	pub Publisher,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		profiles: profiles,
		settings: st,
		backup:   bk,
		ledger:   ledger,
		notifier: notifier,
		events:   pub,
		logger:   logger,
	}
}

// Dispatch runs all sinks for one extracted order. phoneFallback is the
// customer's transport phone number, used when the model produced no phone.
func (d *Dispatcher) Dispatch(ctx context.Context, customerID, phoneFallback string, o order.Order) Report {
	rep := Report{OrderID: uuid.NewString()}
	now := time.Now().UTC()

	if o.Phone == "" {
		o.Phone = phoneFallback
	}

	// Profile merge goes first: later sinks and the next prompt build read
	// the updated profile.
	rep.Profile = d.profiles.Merge(customerID, profile.Update{
		Name:      o.Name,
		Address:   o.Address,
		Phone:     o.Phone,
		LastOrder: o.Items,
	})
	if rep.Profile != nil {
		d.logger.Error("profile merge failed", "customer", customerID, "error", rep.Profile)
	}

	if d.ledger != nil {
		rep.Ledger = d.ledger.AppendOrder(ctx, customerID, o)
		if rep.Ledger != nil {
			d.logger.Error("ledger append failed, order saved locally only", "customer", customerID, "error", rep.Ledger)
		}
	}

	rep.Backup = d.backup.Append(backup.Record{
		ID:         rep.OrderID,
		CustomerID: customerID,
		Timestamp:  now.Format(time.RFC3339),
		Order:      o,
	})
	if rep.Backup != nil {
		d.logger.Error("local backup failed", "customer", customerID, "error", rep.Backup)
	}

	if adminPhone := d.settings.Current().AdminPhone; adminPhone != "" && d.notifier != nil {
		rep.Admin = d.notifier.SendToPhone(ctx, adminPhone, formatAdminAlert(o))
		if rep.Admin != nil {
			d.logger.Error("admin notification failed", "error", rep.Admin)
		}
	}

	if d.events != nil {
		rep.Dashboard = d.events.Publish(events.SubjectOrderCreated, events.OrderAlert{
			OrderID:    rep.OrderID,
			CustomerID: customerID,
			Name:       o.Name,
			Items:      o.Items,
			Total:      o.Total,
			Timestamp:  now.Format(time.RFC3339),
		})
		if rep.Dashboard != nil {
			d.logger.Warn("dashboard event failed", "error", rep.Dashboard)
		}
	}

	d.logger.Info("order dispatched",
		"order_id", rep.OrderID,
		"customer", customerID,
		"ledger_ok", rep.Ledger == nil,
		"backup_ok", rep.Backup == nil,
	)
	return rep
}

func formatAdminAlert(o order.Order) string {
	total := o.Total
	if total == "" {
		total = "N/A"
	}
	return fmt.Sprintf("🚨 *NEW ORDER RECEIVED!*\n\n*Customer:* %s\n*Phone:* %s\n*Items:* %s\n*Total:* Rs. %s\n*Address:* %s\n\n_Check the orders sheet for full details._",
		o.Name, o.Phone, o.Items, total, o.Address)
}
