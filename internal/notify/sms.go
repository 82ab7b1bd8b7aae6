package notify

import (
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSClient sends passenger SMS through Twilio.
type SMSClient struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewSMSClient creates a new Twilio SMS client
func NewSMSClient(accountSID, authToken, fromNumber string) *SMSClient {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &SMSClient{
		client:     client,
		fromNumber: fromNumber,
	}
}

// Send delivers one SMS and returns the provider message SID.
func (s *SMSClient) Send(to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.fromNumber)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS: %w", err)
	}

	if resp.Sid == nil {
		return "", fmt.Errorf("no message SID returned")
	}

	return *resp.Sid, nil
}
