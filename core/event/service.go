package event

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
)

var NowFunc = time.Now // mockable

type (
	NewEvent struct {
		Name           string                 `json:"name" validate:"required,max=200"`
		Description    string                 `json:"description" validate:"max=2000"`
		Cost           decimal.Decimal        `json:"cost" validate:"nonneg_amount"`
		Deadline       time.Time              `json:"deadline" validate:"required"`
		Category       ledger.EventCategory   `json:"category" validate:"omitempty,evcategory"`
		PaymentOptions []ledger.PaymentMethod `json:"payment_options" validate:"dive,paymethod"`
		QRCodeURL      string                 `json:"qr_code_url" validate:"omitempty,url"`
		ParticipantIDs []string               `json:"participant_ids"`
	}

	UpdateEvent struct {
		NewEvent
		Status ledger.EventStatus `json:"status"`
	}

	Service struct {
		store    ledger.Store
		validate *validator.Validate
	}
)

func NewService(store ledger.Store, validate *validator.Validate) *Service {
	return &Service{store: store, validate: validate}
}

func (ne *NewEvent) clean() {
	ne.Name = core.CleanString(ne.Name)
	ne.Description = core.CleanString(ne.Description)
	ne.QRCodeURL = core.CleanString(ne.QRCodeURL)
	if ne.Category == "" {
		ne.Category = ledger.CategoryNormal
	}
	ne.PaymentOptions = dedupMethods(ne.PaymentOptions)
	ne.ParticipantIDs = dedup(ne.ParticipantIDs)
}

// Validate checks a publishable event. Drafts only need a name.
func (ne *NewEvent) Validate(validate *validator.Validate, draft bool) error {
	ne.clean()
	if draft && ne.Deadline.IsZero() {
		cp := *ne
		cp.Deadline = time.Unix(0, 0) // a deadline is only required once published
		return validate.Struct(&cp)
	}
	return validate.Struct(ne)
}

func (ue *UpdateEvent) Validate(validate *validator.Validate) error {
	if ue.Status != ledger.EventDraft && ue.Status != ledger.EventPublished {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "must be one of: Draft, Published"})
	}
	return ue.NewEvent.Validate(validate, ue.Status == ledger.EventDraft)
}

// Publish creates an event students can pay right away.
func (svc *Service) Publish(ctx context.Context, ne NewEvent) (ledger.Event, error) {
	if err := ne.Validate(svc.validate, false); err != nil {
		return ledger.Event{}, err
	}
	return svc.create(ctx, ne, ledger.EventPublished)
}

// SaveDraft creates an event hidden from students until it is published.
func (svc *Service) SaveDraft(ctx context.Context, ne NewEvent) (ledger.Event, error) {
	if err := ne.Validate(svc.validate, true); err != nil {
		return ledger.Event{}, err
	}
	return svc.create(ctx, ne, ledger.EventDraft)
}

func (svc *Service) create(ctx context.Context, ne NewEvent, status ledger.EventStatus) (ledger.Event, error) {
	now := NowFunc().UTC()
	evt, err := svc.store.CreateEvent(ctx, ledger.Event{
		Name:           ne.Name,
		Description:    ne.Description,
		Cost:           ne.Cost,
		Deadline:       ne.Deadline.UTC(),
		Category:       ne.Category,
		Status:         status,
		PaymentOptions: ne.PaymentOptions,
		QRCodeURL:      ne.QRCodeURL,
		ParticipantIDs: ne.ParticipantIDs,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return ledger.Event{}, core.StoreError(err, "creating event")
	}
	return evt, nil
}

func (svc *Service) Update(ctx context.Context, id string, ue UpdateEvent) (ledger.Event, error) {
	var evt ledger.Event
	err := svc.store.Tx(ctx, func(tx ledger.Store) error {
		orig, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if ue.Status == "" {
			ue.Status = orig.Status
		}
		if err = ue.Validate(svc.validate); err != nil {
			return err
		}
		evt, err = tx.UpdateEvent(ctx, ledger.Event{
			ID:             orig.ID,
			Name:           ue.Name,
			Description:    ue.Description,
			Cost:           ue.Cost,
			Deadline:       ue.Deadline.UTC(),
			Category:       ue.Category,
			Status:         ue.Status,
			PaymentOptions: ue.PaymentOptions,
			QRCodeURL:      ue.QRCodeURL,
			ParticipantIDs: ue.ParticipantIDs,
			CreatedAt:      orig.CreatedAt,
			UpdatedAt:      NowFunc().UTC(),
		})
		return err
	})
	if err != nil {
		return ledger.Event{}, core.StoreError(err, "updating event")
	}
	return evt, nil
}

func (svc *Service) Get(ctx context.Context, id string) (ledger.Event, error) {
	evt, err := svc.store.GetEvent(ctx, id)
	return evt, core.StoreError(err, "getting event")
}

func (svc *Service) Query(ctx context.Context, filter ledger.EventFilter) ([]ledger.Event, error) {
	events, err := svc.store.QueryEvents(ctx, filter)
	return events, core.StoreError(err, "querying events")
}

// Delete removes the event with its payments, print distributions and participants, all or nothing.
func (svc *Service) Delete(ctx context.Context, id string) error {
	err := svc.store.Tx(ctx, func(tx ledger.Store) error {
		if _, err := tx.GetEvent(ctx, id); err != nil {
			return err
		}
		if err := tx.DeletePrintDistributionsByEvent(ctx, id); err != nil {
			return err
		}
		if err := tx.DeletePaymentsByEvent(ctx, id); err != nil {
			return err
		}
		return tx.DeleteEvent(ctx, id)
	})
	return core.StoreError(err, "deleting event")
}

func dedup(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func dedupMethods(methods []ledger.PaymentMethod) []ledger.PaymentMethod {
	seen := make(map[ledger.PaymentMethod]bool, len(methods))
	out := make([]ledger.PaymentMethod, 0, len(methods))
	for _, m := range methods {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
