package bookings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statelyrides/chauffeur/internal/directions"
	"github.com/statelyrides/chauffeur/internal/quotes"
	"github.com/statelyrides/chauffeur/internal/rules"
	"github.com/statelyrides/chauffeur/pkg/common"
	"github.com/statelyrides/chauffeur/pkg/config"
)

var fixedNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*Booking
}

func newMemStore() *memStore {
	return &memStore{bookings: make(map[uuid.UUID]*Booking)}
}

func (m *memStore) CreateBooking(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memStore) GetBookingByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, common.NewNotFoundError("booking not found", nil)
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ListBookingsByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = now
	return true, nil
}

func (m *memStore) ApplyModification(_ context.Context, updated *Booking, oldQuoteID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[updated.ID]
	if !ok || b.QuoteID != oldQuoteID || (b.Status != StatusPending && b.Status != StatusConfirmed) {
		return false, nil
	}
	cp := *updated
	m.bookings[updated.ID] = &cp
	return true, nil
}

func (m *memStore) RecordCancellation(_ context.Context, id uuid.UUID, record *CancellationRecord, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || (b.Status != StatusPending && b.Status != StatusConfirmed) {
		return false, nil
	}
	b.Status = StatusCancelled
	b.Cancellation = record
	b.UpdatedAt = now
	return true, nil
}

func (m *memStore) SetPaymentIntent(_ context.Context, id uuid.UUID, paymentIntentID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		b.PaymentIntentID = paymentIntentID
		b.UpdatedAt = now
	}
	return nil
}

// fakeQuoteManager mimics the quote lifecycle with in-memory quotes.
type fakeQuoteManager struct {
	mu           sync.Mutex
	quotes       map[uuid.UUID]*quotes.Quote
	composeCalls int
	composeErr   error
}

func newFakeQuoteManager() *fakeQuoteManager {
	return &fakeQuoteManager{quotes: make(map[uuid.UUID]*quotes.Quote)}
}

func (f *fakeQuoteManager) add(q *quotes.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[q.ID] = q
}

func (f *fakeQuoteManager) GetQuote(_ context.Context, id uuid.UUID) (*quotes.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[id]
	if !ok {
		return nil, common.NewNotFoundError("quote not found", nil)
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuoteManager) LockQuote(_ context.Context, id uuid.UUID) (*quotes.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[id]
	if !ok {
		return nil, common.NewNotFoundError("quote not found", nil)
	}
	if q.Locked {
		return nil, common.NewQuoteLockedError("quote is already locked by a booking")
	}
	if fixedNow.After(q.ValidUntil) {
		return nil, common.NewQuoteExpiredError("quote has expired; request a new one")
	}
	q.Locked = true
	cp := *q
	return &cp, nil
}

func (f *fakeQuoteManager) ComposeFor(_ context.Context, req quotes.TripRequest, bookingReference string) (*quotes.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.composeCalls++
	if f.composeErr != nil {
		return nil, f.composeErr
	}
	q := testQuote(req.PickupDateTime, 150)
	q.Request = req
	q.BookingReference = bookingReference
	f.quotes[q.ID] = q
	cp := *q
	return &cp, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed int
	cancelled int
}

func (n *recordingNotifier) BookingConfirmed(context.Context, *Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed++
}

func (n *recordingNotifier) BookingCancelled(context.Context, *Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled++
}

type fakePayments struct {
	err           error
	intents       int
	refunds       int
	refundedTotal float64
}

func (p *fakePayments) CreatePaymentIntent(context.Context, *Booking, string) (string, error) {
	p.intents++
	if p.err != nil {
		return "", p.err
	}
	return "pi_test_123", nil
}

func (p *fakePayments) RefundPaymentIntent(_ context.Context, _ string, amount float64) (string, error) {
	p.refunds++
	p.refundedTotal += amount
	return "re_test_123", nil
}

func testQuote(pickupAt time.Time, subtotal float64) *quotes.Quote {
	dropoff := directions.Location{Address: "30th St Station", Latitude: 39.955, Longitude: -75.182}
	total := subtotal * 1.085
	return &quotes.Quote{
		ID:               uuid.New(),
		BookingReference: "SR-20260901-K7M2QD",
		Request: quotes.TripRequest{
			ServiceType:    rules.ServiceOneWay,
			Pickup:         directions.Location{Address: "1 Main St", Latitude: 39.93, Longitude: -75.02},
			Dropoff:        &dropoff,
			PickupDateTime: pickupAt,
		},
		Breakdown: quotes.Breakdown{
			Subtotal: subtotal,
			Total:    total,
		},
		Currency:   "USD",
		ValidUntil: fixedNow.Add(30 * time.Minute),
		CreatedAt:  fixedNow,
	}
}

type fixture struct {
	svc      *Service
	store    *memStore
	quoteMgr *fakeQuoteManager
	notifier *recordingNotifier
	payments *fakePayments
}

func newFixture(refundRules ...rules.PricingRule) *fixture {
	store := newMemStore()
	quoteMgr := newFakeQuoteManager()
	notifier := &recordingNotifier{}
	payments := &fakePayments{}

	var refunds RefundRuleSource
	if len(refundRules) > 0 {
		refunds = staticRules{snap: &rules.Snapshot{Rules: refundRules}}
	}

	policy := &config.PolicyConfig{
		ModificationCutoffHours: 4,
		FullRefundHours:         24,
		PartialRefundHours:      1,
		PartialRefundPct:        50,
	}

	svc := NewService(store, quoteMgr, refunds, notifier, payments, nil, policy)
	svc.now = func() time.Time { return fixedNow }

	return &fixture{svc: svc, store: store, quoteMgr: quoteMgr, notifier: notifier, payments: payments}
}

type staticRules struct{ snap *rules.Snapshot }

func (s staticRules) LoadSnapshot(context.Context, rules.ServiceType) (*rules.Snapshot, error) {
	return s.snap, nil
}

func (f *fixture) createBooking(t *testing.T, userID uuid.UUID, hoursUntilPickup float64, gratuityPct float64) *Booking {
	t.Helper()
	quote := testQuote(fixedNow.Add(time.Duration(hoursUntilPickup*float64(time.Hour))), 100)
	f.quoteMgr.add(quote)

	booking, err := f.svc.CreateBooking(context.Background(), CreateParams{
		UserID:      userID,
		QuoteID:     quote.ID,
		Passenger:   Passenger{Name: "Ada Lovelace", Phone: "+12155550123", Email: "ada@example.com"},
		GratuityPct: gratuityPct,
	})
	require.NoError(t, err)
	return booking
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.ErrorCode)
}

func TestCreateBooking(t *testing.T) {
	f := newFixture()
	userID := uuid.New()

	booking := f.createBooking(t, userID, 48, 20)

	assert.Equal(t, StatusPending, booking.Status)
	assert.Equal(t, "SR-20260901-K7M2QD", booking.BookingReference)
	// subtotal 100, total 108.50, gratuity 20% of subtotal = 20.00
	assert.InDelta(t, 20.00, booking.GratuityAmount, 0.001)
	assert.InDelta(t, 128.50, booking.TotalAmount, 0.001)
	assert.Equal(t, "pi_test_123", booking.PaymentIntentID)
	assert.Equal(t, 1, f.payments.intents)

	// The quote is consumed.
	q, err := f.quoteMgr.GetQuote(context.Background(), booking.QuoteID)
	require.NoError(t, err)
	assert.True(t, q.Locked)
}

func TestCreateBooking_LockedQuote(t *testing.T) {
	f := newFixture()
	quote := testQuote(fixedNow.Add(48*time.Hour), 100)
	quote.Locked = true
	f.quoteMgr.add(quote)

	_, err := f.svc.CreateBooking(context.Background(), CreateParams{
		UserID:    uuid.New(),
		QuoteID:   quote.ID,
		Passenger: Passenger{Name: "Ada Lovelace", Phone: "+12155550123", Email: "ada@example.com"},
	})
	assertErrorCode(t, err, common.CodeQuoteLocked)
}

func TestCreateBooking_ExpiredQuote(t *testing.T) {
	f := newFixture()
	quote := testQuote(fixedNow.Add(48*time.Hour), 100)
	quote.ValidUntil = fixedNow.Add(-time.Minute)
	f.quoteMgr.add(quote)

	_, err := f.svc.CreateBooking(context.Background(), CreateParams{
		UserID:    uuid.New(),
		QuoteID:   quote.ID,
		Passenger: Passenger{Name: "Ada Lovelace", Phone: "+12155550123", Email: "ada@example.com"},
	})
	assertErrorCode(t, err, common.CodeQuoteExpired)
}

func TestCreateBooking_BadGratuityLeavesQuoteUnlocked(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	quote := testQuote(fixedNow.Add(48*time.Hour), 100)
	f.quoteMgr.add(quote)

	_, err := f.svc.CreateBooking(context.Background(), CreateParams{
		UserID:      userID,
		QuoteID:     quote.ID,
		Passenger:   Passenger{Name: "Ada Lovelace", Phone: "+12155550123", Email: "ada@example.com"},
		GratuityPct: 150,
	})
	assertErrorCode(t, err, common.CodeValidation)

	// The rejected request must not consume the quote.
	q, getErr := f.quoteMgr.GetQuote(context.Background(), quote.ID)
	require.NoError(t, getErr)
	assert.False(t, q.Locked)

	// A corrected retry books the same quote.
	booking, err := f.svc.CreateBooking(context.Background(), CreateParams{
		UserID:      userID,
		QuoteID:     quote.ID,
		Passenger:   Passenger{Name: "Ada Lovelace", Phone: "+12155550123", Email: "ada@example.com"},
		GratuityPct: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, booking.Status)
}

func TestCreateBooking_PaymentFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture()
	f.payments.err = errors.New("stripe down")

	booking := f.createBooking(t, uuid.New(), 48, 0)
	assert.Empty(t, booking.PaymentIntentID)

	stored, err := f.store.GetBookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestLifecycleHappyPath(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	booking := f.createBooking(t, userID, 48, 0)

	confirmed, err := f.svc.ConfirmBooking(context.Background(), booking.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Equal(t, 1, f.notifier.confirmed)

	started, err := f.svc.StartBooking(context.Background(), booking.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)

	completed, err := f.svc.CompleteBooking(context.Background(), booking.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
}

func TestIllegalTransitions(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	booking := f.createBooking(t, userID, 48, 0)

	// PENDING cannot start or complete.
	_, err := f.svc.StartBooking(context.Background(), booking.ID, userID)
	assertErrorCode(t, err, common.CodePolicyViolation)
	_, err = f.svc.CompleteBooking(context.Background(), booking.ID, userID)
	assertErrorCode(t, err, common.CodePolicyViolation)

	_, err = f.svc.ConfirmBooking(context.Background(), booking.ID, userID)
	require.NoError(t, err)

	// CONFIRMED cannot confirm again or complete.
	_, err = f.svc.ConfirmBooking(context.Background(), booking.ID, userID)
	assertErrorCode(t, err, common.CodePolicyViolation)
	_, err = f.svc.CompleteBooking(context.Background(), booking.ID, userID)
	assertErrorCode(t, err, common.CodePolicyViolation)
}

func TestCancelBooking_RefundTiers(t *testing.T) {
	tests := []struct {
		name             string
		hoursUntilPickup float64
		wantPct          float64
		wantRefund       float64
	}{
		{"thirty hours out refunds fully", 30, 100, 108.50},
		{"five hours out refunds half", 5, 50, 54.25},
		{"thirty minutes out refunds nothing", 0.5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			userID := uuid.New()
			booking := f.createBooking(t, userID, tt.hoursUntilPickup, 0)

			cancelled, err := f.svc.CancelBooking(context.Background(), booking.ID, userID, "change of plans")
			require.NoError(t, err)

			assert.Equal(t, StatusCancelled, cancelled.Status)
			require.NotNil(t, cancelled.Cancellation)
			assert.Equal(t, tt.wantPct, cancelled.Cancellation.RefundPct)
			assert.InDelta(t, tt.wantRefund, cancelled.Cancellation.RefundAmount, 0.001)
			assert.Equal(t, "change of plans", cancelled.Cancellation.Reason)

			if tt.wantRefund > 0 {
				assert.Equal(t, 1, f.payments.refunds)
				assert.InDelta(t, tt.wantRefund, f.payments.refundedTotal, 0.001)
			} else {
				assert.Equal(t, 0, f.payments.refunds)
			}
		})
	}
}

func TestCancelBooking_RefundRuleOverridesTiers(t *testing.T) {
	// A refund rule granting 75% between 2 and 12 hours out.
	rule := rules.PricingRule{
		ID:          uuid.New(),
		Name:        "storm season partial refund",
		RuleType:    rules.RuleTypeRefund,
		ServiceType: rules.ServiceOneWay,
		IsActive:    true,
		Conditions: []rules.Condition{
			{Field: "hours_until_pickup", Operator: rules.OpBetween, Value: []interface{}{2.0, 12.0}},
		},
		Calculation: rules.Calculation{Type: rules.CalcFixed, Value: 75},
	}

	f := newFixture(rule)
	userID := uuid.New()
	booking := f.createBooking(t, userID, 5, 0)

	cancelled, err := f.svc.CancelBooking(context.Background(), booking.ID, userID, "weather")
	require.NoError(t, err)
	assert.Equal(t, 75.0, cancelled.Cancellation.RefundPct)
	assert.InDelta(t, 81.38, cancelled.Cancellation.RefundAmount, 0.005)
}

func TestCancelBooking_NoMatchingRuleFallsBackToTiers(t *testing.T) {
	rule := rules.PricingRule{
		ID:          uuid.New(),
		Name:        "storm season partial refund",
		RuleType:    rules.RuleTypeRefund,
		ServiceType: rules.ServiceOneWay,
		IsActive:    true,
		Conditions: []rules.Condition{
			{Field: "hours_until_pickup", Operator: rules.OpBetween, Value: []interface{}{2.0, 12.0}},
		},
		Calculation: rules.Calculation{Type: rules.CalcFixed, Value: 75},
	}

	f := newFixture(rule)
	userID := uuid.New()
	booking := f.createBooking(t, userID, 30, 0)

	cancelled, err := f.svc.CancelBooking(context.Background(), booking.ID, userID, "weather")
	require.NoError(t, err)
	assert.Equal(t, 100.0, cancelled.Cancellation.RefundPct)
}

func TestCancelBooking_FromInProgress(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	booking := f.createBooking(t, userID, 48, 0)

	_, err := f.svc.ConfirmBooking(context.Background(), booking.ID, userID)
	require.NoError(t, err)
	_, err = f.svc.StartBooking(context.Background(), booking.ID, userID)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), booking.ID, userID, "too late")
	assertErrorCode(t, err, common.CodePolicyViolation)
	assert.Equal(t, 0, f.notifier.cancelled)
}

func TestModifyBooking(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	booking := f.createBooking(t, userID, 48, 10)
	oldQuoteID := booking.QuoteID

	newPickup := fixedNow.Add(72 * time.Hour)
	dropoff := directions.Location{Address: "PHL Terminal B", Latitude: 39.872, Longitude: -75.241, IsAirport: true}
	modified, err := f.svc.ModifyBooking(context.Background(), booking.ID, userID, ModifyParams{
		Request: quotes.TripRequest{
			ServiceType:    rules.ServiceOneWay,
			Pickup:         directions.Location{Address: "1 Main St", Latitude: 39.93, Longitude: -75.02},
			Dropoff:        &dropoff,
			PickupDateTime: newPickup,
		},
		Note: "airport instead",
	})
	require.NoError(t, err)

	assert.NotEqual(t, oldQuoteID, modified.QuoteID)
	assert.Equal(t, newPickup, modified.PickupAt)
	// New quote subtotal 150, total 162.75, gratuity carried at 10% = 15.00.
	assert.InDelta(t, 15.00, modified.GratuityAmount, 0.001)
	assert.InDelta(t, 177.75, modified.TotalAmount, 0.001)

	require.Len(t, modified.Modifications, 1)
	rec := modified.Modifications[0]
	assert.Equal(t, oldQuoteID, rec.OldQuoteID)
	assert.Equal(t, modified.QuoteID, rec.NewQuoteID)
	assert.Equal(t, "airport instead", rec.Note)

	// The replacement quote is locked.
	q, err := f.quoteMgr.GetQuote(context.Background(), modified.QuoteID)
	require.NoError(t, err)
	assert.True(t, q.Locked)
}

func TestModifyBooking_InsideCutoff(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	booking := f.createBooking(t, userID, 2, 0) // cutoff is 4 hours

	_, err := f.svc.ModifyBooking(context.Background(), booking.ID, userID, ModifyParams{
		Request: quotes.TripRequest{ServiceType: rules.ServiceOneWay},
	})
	assertErrorCode(t, err, common.CodePolicyViolation)
	assert.Equal(t, 0, f.quoteMgr.composeCalls, "no re-pricing inside the cutoff")

	stored, err := f.store.GetBookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Modifications)
	assert.Equal(t, booking.QuoteID, stored.QuoteID)
}

func TestModifyBooking_NewPickupInsideCutoff(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	booking := f.createBooking(t, userID, 48, 0) // cutoff is 4 hours

	// Rescheduling to 30 minutes from now must fail the same window check.
	_, err := f.svc.ModifyBooking(context.Background(), booking.ID, userID, ModifyParams{
		Request: quotes.TripRequest{ServiceType: rules.ServiceOneWay, PickupDateTime: fixedNow.Add(30 * time.Minute)},
	})
	assertErrorCode(t, err, common.CodePolicyViolation)
	assert.Equal(t, 0, f.quoteMgr.composeCalls)

	stored, err := f.store.GetBookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.QuoteID, stored.QuoteID)
	assert.Empty(t, stored.Modifications)
}

func TestModifyBooking_ComposeFailureLeavesBookingUntouched(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	booking := f.createBooking(t, userID, 48, 0)
	f.quoteMgr.composeErr = common.NewOutOfServiceAreaError("trip exceeds service radius")

	_, err := f.svc.ModifyBooking(context.Background(), booking.ID, userID, ModifyParams{
		Request: quotes.TripRequest{ServiceType: rules.ServiceOneWay, PickupDateTime: fixedNow.Add(48 * time.Hour)},
	})
	assertErrorCode(t, err, common.CodeOutOfServiceArea)

	stored, err := f.store.GetBookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.QuoteID, stored.QuoteID)
	assert.Equal(t, booking.TotalAmount, stored.TotalAmount)
	assert.Empty(t, stored.Modifications)
}

func TestGetBooking_WrongUser(t *testing.T) {
	f := newFixture()
	booking := f.createBooking(t, uuid.New(), 48, 0)

	_, err := f.svc.GetBooking(context.Background(), booking.ID, uuid.New())
	assertErrorCode(t, err, common.CodeNotFound)
}
