package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statelyrides/chauffeur/internal/bookings"
)

type sentSMS struct {
	to   string
	body string
}

type chanSMS struct {
	sent chan sentSMS
	err  error
}

func (c *chanSMS) Send(to, body string) (string, error) {
	c.sent <- sentSMS{to: to, body: body}
	if c.err != nil {
		return "", c.err
	}
	return "SM123", nil
}

type sentEmail struct {
	to      string
	subject string
}

type chanEmail struct {
	sent chan sentEmail
}

func (c *chanEmail) Send(to, subject, _ string) error {
	c.sent <- sentEmail{to: to, subject: subject}
	return nil
}

func testBooking() *bookings.Booking {
	return &bookings.Booking{
		ID:               uuid.New(),
		BookingReference: "SR-20260901-K7M2QD",
		Passenger: bookings.Passenger{
			Name:  "Ada Lovelace",
			Phone: "+12155550123",
			Email: "ada@example.com",
		},
		PickupAt:    time.Date(2026, 9, 4, 20, 0, 0, 0, time.UTC),
		TotalAmount: 128.50,
	}
}

func waitSMS(t *testing.T, c *chanSMS) sentSMS {
	t.Helper()
	select {
	case msg := <-c.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SMS")
		return sentSMS{}
	}
}

func waitEmail(t *testing.T, c *chanEmail) sentEmail {
	t.Helper()
	select {
	case msg := <-c.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for email")
		return sentEmail{}
	}
}

func TestBookingConfirmed_SendsBothChannels(t *testing.T) {
	sms := &chanSMS{sent: make(chan sentSMS, 1)}
	email := &chanEmail{sent: make(chan sentEmail, 1)}
	n := NewNotifier(sms, email)

	n.BookingConfirmed(context.Background(), testBooking())

	msg := waitSMS(t, sms)
	assert.Equal(t, "+12155550123", msg.to)
	assert.Contains(t, msg.body, "SR-20260901-K7M2QD")
	assert.Contains(t, msg.body, "$128.50")

	mail := waitEmail(t, email)
	assert.Equal(t, "ada@example.com", mail.to)
	assert.Equal(t, "Ride SR-20260901-K7M2QD confirmed", mail.subject)
}

func TestBookingCancelled_MentionsRefund(t *testing.T) {
	sms := &chanSMS{sent: make(chan sentSMS, 1)}
	n := NewNotifier(sms, nil)

	booking := testBooking()
	booking.Cancellation = &bookings.CancellationRecord{
		Reason:       "change of plans",
		RefundPct:    50,
		RefundAmount: 64.25,
	}
	n.BookingCancelled(context.Background(), booking)

	msg := waitSMS(t, sms)
	assert.Contains(t, msg.body, "cancelled")
	assert.Contains(t, msg.body, "$64.25")
	assert.Contains(t, msg.body, "50%")
}

func TestSendFailureDoesNotPropagate(t *testing.T) {
	sms := &chanSMS{sent: make(chan sentSMS, 1), err: errors.New("twilio down")}
	email := &chanEmail{sent: make(chan sentEmail, 1)}
	n := NewNotifier(sms, email)

	// Must not panic or block; the email still goes out.
	n.BookingConfirmed(context.Background(), testBooking())

	waitSMS(t, sms)
	mail := waitEmail(t, email)
	require.Equal(t, "ada@example.com", mail.to)
}

func TestMissingContactSkipsChannel(t *testing.T) {
	sms := &chanSMS{sent: make(chan sentSMS, 1)}
	email := &chanEmail{sent: make(chan sentEmail, 1)}
	n := NewNotifier(sms, email)

	booking := testBooking()
	booking.Passenger.Phone = ""
	n.BookingConfirmed(context.Background(), booking)

	// The email arrives; no SMS was attempted.
	waitEmail(t, email)
	select {
	case <-sms.sent:
		t.Fatal("SMS sent despite missing phone number")
	default:
	}
}
