package config

import (
	"github.com/spf13/viper"
)

// SMS sms delivery config struct
type SMS struct {
	Provider string // "twilio" or "log"
	Twilio   *Twilio
}

// Twilio twilio config struct
type Twilio struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func getSMSConfig(v *viper.Viper) *SMS {
	return &SMS{
		Provider: getStringOrDefault(v, "sms.provider", "log"),
		Twilio: &Twilio{
			AccountSID: v.GetString("sms.twilio.account_sid"),
			AuthToken:  v.GetString("sms.twilio.auth_token"),
			FromNumber: v.GetString("sms.twilio.from_number"),
		},
	}
}
