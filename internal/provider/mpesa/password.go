package mpesa

import (
	"encoding/base64"
	"time"
)

const timestampLayout = "20060102150405"

// Daraja expects timestamps in Kenyan local time.
var providerLocation = loadProviderLocation()

func loadProviderLocation() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

// Timestamp formats t as YYYYMMDDHHmmss in the provider's time zone.
func Timestamp(t time.Time) string {
	return t.In(providerLocation).Format(timestampLayout)
}

// Password is base64(shortcode || passkey || timestamp). It is only valid
// together with the same timestamp, so it is rebuilt for every request.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}
