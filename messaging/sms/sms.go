// Package sms delivers one-time codes over SMS.
package sms

import "context"

// Sender delivers a one-time code to a phone number.
type Sender interface {
	SendCode(ctx context.Context, phoneNumber, code string) error
}
