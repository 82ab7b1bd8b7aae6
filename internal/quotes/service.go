package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/statelyrides/chauffeur/pkg/cache"
	"github.com/statelyrides/chauffeur/pkg/common"
	"github.com/statelyrides/chauffeur/pkg/eventbus"
	"github.com/statelyrides/chauffeur/pkg/logger"
)

// Store is the persistence surface the lifecycle manager needs.
type Store interface {
	CreateQuote(ctx context.Context, q *Quote) error
	GetQuoteByID(ctx context.Context, id uuid.UUID) (*Quote, error)
	TryLockQuote(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// Service is the quote lifecycle manager: it persists composed quotes,
// applies lazy expiry on read, refreshes pricing for unlocked quotes, and
// locks a quote when a booking consumes it.
type Service struct {
	store    Store
	composer *Composer
	cache    *cache.Manager
	bus      *eventbus.Bus
	now      func() time.Time
}

// NewService creates the quote lifecycle service.
func NewService(store Store, composer *Composer, cacheManager *cache.Manager, bus *eventbus.Bus) *Service {
	return &Service{
		store:    store,
		composer: composer,
		cache:    cacheManager,
		bus:      bus,
		now:      time.Now,
	}
}

// CreateQuote composes and persists a new quote.
func (s *Service) CreateQuote(ctx context.Context, req TripRequest) (*Quote, error) {
	quote, err := s.composer.Compose(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateQuote(ctx, quote); err != nil {
		return nil, err
	}

	s.cacheQuote(ctx, quote)
	composed := eventbus.QuoteComposedData{
		QuoteID:          quote.ID,
		BookingReference: quote.BookingReference,
		ServiceType:      string(quote.Request.ServiceType),
		PickupAddress:    quote.Request.Pickup.Address,
		PickupAt:         quote.Request.PickupDateTime,
		Total:            quote.Breakdown.Total,
		Currency:         quote.Currency,
		ValidUntil:       quote.ValidUntil,
		ComposedAt:       quote.CreatedAt,
	}
	if quote.Request.Dropoff != nil {
		composed.DropoffAddress = quote.Request.Dropoff.Address
	}
	s.publish(ctx, eventbus.SubjectQuoteComposed, composed)

	return quote, nil
}

// GetQuote returns a quote, applying expiry at read time. A locked quote is
// frozen pricing history and stays readable after its validity window.
func (s *Service) GetQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !quote.Locked && quote.Expired(s.now().UTC()) {
		return nil, common.NewQuoteExpiredError("quote has expired; request a new one")
	}

	return quote, nil
}

// RefreshQuote recomposes an unlocked quote from its stored inputs, keeping
// the original booking reference for customer continuity. The refreshed quote
// is a new immutable record; the prior one is left to lapse.
func (s *Service) RefreshQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	prior, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if prior.Locked {
		return nil, common.NewQuoteLockedError("a locked quote cannot be refreshed")
	}

	return s.ComposeFor(ctx, prior.Request, prior.BookingReference)
}

// ComposeFor composes and persists a quote while keeping an existing booking
// reference, for refreshes and booking modifications where the
// customer-facing reference must survive re-pricing.
func (s *Service) ComposeFor(ctx context.Context, req TripRequest, bookingReference string) (*Quote, error) {
	fresh, err := s.composer.Compose(ctx, req)
	if err != nil {
		return nil, err
	}
	fresh.BookingReference = bookingReference

	if err := s.store.CreateQuote(ctx, fresh); err != nil {
		return nil, err
	}

	s.cacheQuote(ctx, fresh)
	return fresh, nil
}

// LockQuote marks an unexpired, unlocked quote as consumed by a booking.
// Locking an already-locked quote is an explicit error; it never re-prices.
func (s *Service) LockQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	now := s.now().UTC()

	acquired, err := s.store.TryLockQuote(ctx, id, now)
	if err != nil {
		return nil, err
	}

	if !acquired {
		// Distinguish why the compare-and-swap missed.
		quote, loadErr := s.store.GetQuoteByID(ctx, id)
		if loadErr != nil {
			return nil, loadErr
		}
		if quote.Locked {
			return nil, common.NewQuoteLockedError("quote is already locked by a booking")
		}
		return nil, common.NewQuoteExpiredError("quote has expired; request a new one")
	}

	quote, err := s.store.GetQuoteByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheQuote(ctx, quote)
	s.publish(ctx, eventbus.SubjectQuoteLocked, eventbus.QuoteLockedData{
		QuoteID:          quote.ID,
		BookingReference: quote.BookingReference,
		Total:            quote.Breakdown.Total,
		LockedAt:         now,
	})

	return quote, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Quote, error) {
	if s.cache != nil {
		var quote Quote
		if err := s.cache.Get(ctx, cache.Keys.Quote(id.String()), &quote); err == nil {
			return &quote, nil
		}
	}

	quote, err := s.store.GetQuoteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheQuote(ctx, quote)
	return quote, nil
}

func (s *Service) cacheQuote(ctx context.Context, quote *Quote) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.Keys.Quote(quote.ID.String()), quote, cache.TTL.Medium()); err != nil {
		logger.WithContext(ctx).Warn("failed to cache quote", zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.bus == nil {
		return
	}
	event, err := eventbus.NewEvent(subject, "quotes", data)
	if err != nil {
		logger.WithContext(ctx).Warn("failed to build event", zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, subject, event); err != nil {
		logger.WithContext(ctx).Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
