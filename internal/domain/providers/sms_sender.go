package providers

import "context"

// SMSMessage is one text message to a patient
type SMSMessage struct {
	To   string
	Body string
}

// SMSResult is the gateway's acknowledgement of a message
type SMSResult struct {
	MessageID string
	Status    string
}

// SMSSender delivers text messages through a gateway
type SMSSender interface {
	Send(ctx context.Context, msg SMSMessage) (*SMSResult, error)
}
