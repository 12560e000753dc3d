package events

import "errors"

type subSettings struct {
	buffer           int
	matchFieldValues map[string]string
}

var subSettingsDefault = subSettings{
	buffer: 16,
}

// BufSize sets the capacity of the subscription channel.
func BufSize(n int) SubscriptionOpt {
	return func(s interface{}) error {
		if n < 0 {
			return errors.New("negative buffer size")
		}
		s.(*subSettings).buffer = n
		return nil
	}
}

// MatchField only delivers events whose string field of the given name
// equals value. Multiple MatchField options must all match.
//
//  sub, err := bus.Subscribe(new(events.FundingConfirmed), events.MatchField("TxID", id))
func MatchField(field, value string) SubscriptionOpt {
	return func(s interface{}) error {
		settings := s.(*subSettings)
		m := make(map[string]string, len(settings.matchFieldValues)+1)
		for k, v := range settings.matchFieldValues {
			m[k] = v
		}
		m[field] = value
		settings.matchFieldValues = m
		return nil
	}
}
