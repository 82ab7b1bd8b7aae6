package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/statelyrides/chauffeur/internal/quotes"
	"github.com/statelyrides/chauffeur/internal/rules"
	"github.com/statelyrides/chauffeur/pkg/common"
	"github.com/statelyrides/chauffeur/pkg/config"
	"github.com/statelyrides/chauffeur/pkg/eventbus"
	"github.com/statelyrides/chauffeur/pkg/keyedmutex"
	"github.com/statelyrides/chauffeur/pkg/logger"
)

// Store is the persistence surface the booking service needs.
type Store interface {
	CreateBooking(ctx context.Context, b *Booking) error
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, now time.Time) (bool, error)
	ApplyModification(ctx context.Context, b *Booking, oldQuoteID uuid.UUID) (bool, error)
	RecordCancellation(ctx context.Context, id uuid.UUID, record *CancellationRecord, now time.Time) (bool, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string, now time.Time) error
}

// QuoteManager is the slice of the quote lifecycle a booking drives.
type QuoteManager interface {
	GetQuote(ctx context.Context, id uuid.UUID) (*quotes.Quote, error)
	LockQuote(ctx context.Context, id uuid.UUID) (*quotes.Quote, error)
	ComposeFor(ctx context.Context, req quotes.TripRequest, bookingReference string) (*quotes.Quote, error)
}

// RefundRuleSource supplies refund rules for cancellation pricing.
type RefundRuleSource interface {
	LoadSnapshot(ctx context.Context, serviceType rules.ServiceType) (*rules.Snapshot, error)
}

// Notifier sends passenger-facing messages. Implementations must be
// fire-and-forget: a notification failure never fails a booking operation.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b *Booking)
	BookingCancelled(ctx context.Context, b *Booking)
}

// PaymentProcessor hands the booking total to the payment provider. No
// capture happens here; the returned IDs are recorded for reconciliation.
type PaymentProcessor interface {
	CreatePaymentIntent(ctx context.Context, b *Booking, currency string) (string, error)
	RefundPaymentIntent(ctx context.Context, paymentIntentID string, amount float64) (string, error)
}

// CreateParams are the inputs to open a booking against a quote.
type CreateParams struct {
	UserID      uuid.UUID
	QuoteID     uuid.UUID
	Passenger   Passenger
	GratuityPct float64
}

// ModifyParams re-price a booking from changed trip inputs.
type ModifyParams struct {
	Request     quotes.TripRequest
	GratuityPct *float64
	Note        string
}

// Service walks bookings through their lifecycle. Operations on the same
// booking are serialized with a per-booking mutex on top of status-guarded
// updates, so concurrent requests observe clean transitions.
type Service struct {
	store    Store
	quoteMgr QuoteManager
	refunds  RefundRuleSource
	notifier Notifier
	payments PaymentProcessor
	bus      *eventbus.Bus
	policy   *config.PolicyConfig
	locks    *keyedmutex.KeyedMutex
	now      func() time.Time
}

// NewService creates the booking lifecycle service.
func NewService(
	store Store,
	quoteMgr QuoteManager,
	refunds RefundRuleSource,
	notifier Notifier,
	payments PaymentProcessor,
	bus *eventbus.Bus,
	policy *config.PolicyConfig,
) *Service {
	return &Service{
		store:    store,
		quoteMgr: quoteMgr,
		refunds:  refunds,
		notifier: notifier,
		payments: payments,
		bus:      bus,
		policy:   policy,
		locks:    keyedmutex.New(),
		now:      time.Now,
	}
}

// CreateBooking locks the quote and opens a PENDING booking against it. The
// quote lock is the point of no return for the price: expired or already
// consumed quotes fail here.
func (s *Service) CreateBooking(ctx context.Context, params CreateParams) (*Booking, error) {
	if params.GratuityPct < 0 || params.GratuityPct > 100 {
		return nil, common.NewValidationError("gratuity_pct must be between 0 and 100")
	}

	quote, err := s.quoteMgr.LockQuote(ctx, params.QuoteID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	gratuity := round2(quote.Breakdown.Subtotal * params.GratuityPct / 100)

	booking := &Booking{
		ID:               uuid.New(),
		UserID:           params.UserID,
		QuoteID:          quote.ID,
		BookingReference: quote.BookingReference,
		Status:           StatusPending,
		Passenger:        params.Passenger,
		PickupAt:         quote.Request.PickupDateTime,
		GratuityPct:      params.GratuityPct,
		GratuityAmount:   gratuity,
		TotalAmount:      round2(quote.GrandTotal() + gratuity),
		Modifications:    []ModificationRecord{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	if s.payments != nil {
		intentID, err := s.payments.CreatePaymentIntent(ctx, booking, quote.Currency)
		if err != nil {
			// The booking stands; payment setup is retried out of band.
			logger.WithContext(ctx).Warn("failed to create payment intent",
				zap.String("booking_id", booking.ID.String()), zap.Error(err))
		} else {
			booking.PaymentIntentID = intentID
			if err := s.store.SetPaymentIntent(ctx, booking.ID, intentID, now); err != nil {
				logger.WithContext(ctx).Warn("failed to record payment intent",
					zap.String("booking_id", booking.ID.String()), zap.Error(err))
			}
		}
	}

	s.publish(ctx, eventbus.SubjectBookingCreated, eventbus.BookingCreatedData{
		BookingID:        booking.ID,
		UserID:           booking.UserID,
		QuoteID:          booking.QuoteID,
		BookingReference: booking.BookingReference,
		TotalAmount:      booking.TotalAmount,
		PickupAt:         booking.PickupAt,
		CreatedAt:        booking.CreatedAt,
	})

	return booking, nil
}

// GetBooking returns a booking by ID, scoped to its owner.
func (s *Service) GetBooking(ctx context.Context, id, userID uuid.UUID) (*Booking, error) {
	booking, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, common.NewNotFoundError("booking not found", nil)
	}
	return booking, nil
}

// ListBookings returns a page of the user's bookings.
func (s *Service) ListBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListBookingsByUser(ctx, userID, limit, offset)
}

// ConfirmBooking moves PENDING -> CONFIRMED and notifies the passenger.
func (s *Service) ConfirmBooking(ctx context.Context, id, userID uuid.UUID) (*Booking, error) {
	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	booking, err := s.transition(ctx, id, userID, StatusPending, StatusConfirmed)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.BookingConfirmed(ctx, booking)
	}

	s.publish(ctx, eventbus.SubjectBookingConfirmed, eventbus.BookingConfirmedData{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		ConfirmedAt: booking.UpdatedAt,
	})

	return booking, nil
}

// StartBooking moves CONFIRMED -> IN_PROGRESS when the chauffeur departs.
func (s *Service) StartBooking(ctx context.Context, id, userID uuid.UUID) (*Booking, error) {
	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	booking, err := s.transition(ctx, id, userID, StatusConfirmed, StatusInProgress)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, eventbus.SubjectBookingStarted, eventbus.BookingStartedData{
		BookingID: booking.ID,
		UserID:    booking.UserID,
		StartedAt: booking.UpdatedAt,
	})

	return booking, nil
}

// CompleteBooking moves IN_PROGRESS -> COMPLETED, a terminal state.
func (s *Service) CompleteBooking(ctx context.Context, id, userID uuid.UUID) (*Booking, error) {
	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	booking, err := s.transition(ctx, id, userID, StatusInProgress, StatusCompleted)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, eventbus.SubjectBookingCompleted, eventbus.BookingCompletedData{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		TotalAmount: booking.TotalAmount,
		CompletedAt: booking.UpdatedAt,
	})

	return booking, nil
}

// ModifyBooking re-prices the booking from changed trip inputs inside the
// modification window. The new quote is composed and locked first; the
// booking record is swapped last, so any failure leaves it untouched.
func (s *Service) ModifyBooking(ctx context.Context, id, userID uuid.UUID, params ModifyParams) (*Booking, error) {
	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	booking, err := s.GetBooking(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if booking.Status != StatusPending && booking.Status != StatusConfirmed {
		return nil, common.NewPolicyViolationError(
			fmt.Sprintf("booking in status %s cannot be modified", booking.Status))
	}

	now := s.now().UTC()
	cutoff := float64(s.policy.ModificationCutoffHours)
	if booking.HoursUntilPickup(now) < cutoff {
		return nil, common.NewPolicyViolationError(
			fmt.Sprintf("modifications close %d hours before pickup", s.policy.ModificationCutoffHours))
	}
	// The rescheduled pickup must honor the same window, or a modify could
	// move the trip inside the cutoff it just cleared.
	if params.Request.PickupDateTime.Sub(now).Hours() < cutoff {
		return nil, common.NewPolicyViolationError(
			fmt.Sprintf("new pickup time must be at least %d hours away", s.policy.ModificationCutoffHours))
	}

	gratuityPct := booking.GratuityPct
	if params.GratuityPct != nil {
		if *params.GratuityPct < 0 || *params.GratuityPct > 100 {
			return nil, common.NewValidationError("gratuity_pct must be between 0 and 100")
		}
		gratuityPct = *params.GratuityPct
	}

	newQuote, err := s.quoteMgr.ComposeFor(ctx, params.Request, booking.BookingReference)
	if err != nil {
		return nil, err
	}
	if _, err := s.quoteMgr.LockQuote(ctx, newQuote.ID); err != nil {
		return nil, err
	}
	gratuity := round2(newQuote.Breakdown.Subtotal * gratuityPct / 100)

	oldQuoteID := booking.QuoteID
	oldTotal := booking.TotalAmount

	updated := *booking
	updated.QuoteID = newQuote.ID
	updated.PickupAt = newQuote.Request.PickupDateTime
	updated.GratuityPct = gratuityPct
	updated.GratuityAmount = gratuity
	updated.TotalAmount = round2(newQuote.GrandTotal() + gratuity)
	updated.UpdatedAt = now
	updated.Modifications = append(updated.Modifications, ModificationRecord{
		OldQuoteID: oldQuoteID,
		NewQuoteID: newQuote.ID,
		OldTotal:   oldTotal,
		NewTotal:   updated.TotalAmount,
		Note:       params.Note,
		AppliedAt:  now,
	})

	applied, err := s.store.ApplyModification(ctx, &updated, oldQuoteID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, common.NewConflictError("booking changed while modifying; retry with fresh state")
	}

	s.publish(ctx, eventbus.SubjectBookingModified, eventbus.BookingModifiedData{
		BookingID:   updated.ID,
		UserID:      updated.UserID,
		OldQuoteID:  oldQuoteID,
		NewQuoteID:  newQuote.ID,
		TotalAmount: updated.TotalAmount,
		ModifiedAt:  now,
	})

	return &updated, nil
}

// CancelBooking cancels from PENDING or CONFIRMED and settles the refund.
// Refund-type rules keyed on hours_until_pickup take precedence; absent a
// matching rule the configured tiers apply.
func (s *Service) CancelBooking(ctx context.Context, id, userID uuid.UUID, reason string) (*Booking, error) {
	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	booking, err := s.GetBooking(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if booking.Status != StatusPending && booking.Status != StatusConfirmed {
		return nil, common.NewPolicyViolationError(
			fmt.Sprintf("booking in status %s cannot be cancelled", booking.Status))
	}

	now := s.now().UTC()
	refundPct := s.refundPct(ctx, booking, now)
	record := &CancellationRecord{
		Reason:       reason,
		RefundPct:    refundPct,
		RefundAmount: round2(booking.TotalAmount * refundPct / 100),
		CancelledAt:  now,
	}

	recorded, err := s.store.RecordCancellation(ctx, booking.ID, record, now)
	if err != nil {
		return nil, err
	}
	if !recorded {
		return nil, common.NewConflictError("booking changed while cancelling; retry with fresh state")
	}

	booking.Status = StatusCancelled
	booking.Cancellation = record
	booking.UpdatedAt = now

	if s.payments != nil && booking.PaymentIntentID != "" && record.RefundAmount > 0 {
		if _, err := s.payments.RefundPaymentIntent(ctx, booking.PaymentIntentID, record.RefundAmount); err != nil {
			// Refund is reconciled out of band; the cancellation stands.
			logger.WithContext(ctx).Warn("failed to refund payment intent",
				zap.String("booking_id", booking.ID.String()), zap.Error(err))
		}
	}

	if s.notifier != nil {
		s.notifier.BookingCancelled(ctx, booking)
	}

	s.publish(ctx, eventbus.SubjectBookingCancelled, eventbus.BookingCancelledData{
		BookingID:    booking.ID,
		UserID:       booking.UserID,
		Reason:       reason,
		RefundPct:    refundPct,
		RefundAmount: record.RefundAmount,
		CancelledAt:  now,
	})

	return booking, nil
}

// refundPct resolves the cancellation refund percentage. Matching refund
// rules win; otherwise the tiered policy applies to the pickup lead time.
func (s *Service) refundPct(ctx context.Context, booking *Booking, now time.Time) float64 {
	hours := booking.HoursUntilPickup(now)

	if s.refunds != nil {
		quote, err := s.quoteMgr.GetQuote(ctx, booking.QuoteID)
		if err == nil {
			snap, err := s.refunds.LoadSnapshot(ctx, quote.Request.ServiceType)
			if err == nil {
				facts := rules.Context{"hours_until_pickup": hours}
				result := rules.Apply(snap, quote.Request.ServiceType, rules.RuleTypeRefund, facts, 0, now)
				if len(result.Trail) > 0 {
					return clampPct(result.Amount)
				}
			} else {
				logger.WithContext(ctx).Warn("failed to load refund rules; using tiered policy", zap.Error(err))
			}
		}
	}

	switch {
	case hours >= s.policy.FullRefundHours:
		return 100
	case hours >= s.policy.PartialRefundHours:
		return s.policy.PartialRefundPct
	default:
		return 0
	}
}

// transition performs a single guarded status move and returns the fresh
// booking. A guard miss means the caller lost a race or the move is illegal
// from the current state.
func (s *Service) transition(ctx context.Context, id, userID uuid.UUID, from, to Status) (*Booking, error) {
	booking, err := s.GetBooking(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if booking.Status != from {
		if !CanTransition(booking.Status, to) {
			return nil, common.NewPolicyViolationError(
				fmt.Sprintf("cannot move booking from %s to %s", booking.Status, to))
		}
		return nil, common.NewConflictError("booking state changed; retry with fresh state")
	}

	now := s.now().UTC()
	moved, err := s.store.UpdateStatus(ctx, id, from, to, now)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, common.NewConflictError("booking state changed; retry with fresh state")
	}

	booking.Status = to
	booking.UpdatedAt = now
	return booking, nil
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return round2(v)
}

func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.bus == nil {
		return
	}
	event, err := eventbus.NewEvent(subject, "bookings", data)
	if err != nil {
		logger.WithContext(ctx).Warn("failed to build event", zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, subject, event); err != nil {
		logger.WithContext(ctx).Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
