package mpesa

import (
	"regexp"
	"strings"

	"github.com/levisbarua/pesaflow/internal/domain"
)

const countryCode = "254"

var msisdnPattern = regexp.MustCompile(`^254\d{9}$`)

// NormalizePhone rewrites a Kenyan number into the 2547XXXXXXXX form Daraja requires:
// a leading "+" is dropped and a single leading "0" becomes "254".
func NormalizePhone(phone string) (string, error) {
	p := strings.Join(strings.Fields(phone), "")
	p = strings.ReplaceAll(p, "-", "")
	p = strings.TrimPrefix(p, "+")

	if strings.HasPrefix(p, "0") && !strings.HasPrefix(p, "00") {
		p = countryCode + p[1:]
	}

	if !msisdnPattern.MatchString(p) {
		return "", &domain.ValidationError{
			Field:   "phoneNumber",
			Message: "phoneNumber must be a Kenyan mobile number such as 0712345678 or +254712345678",
		}
	}
	return p, nil
}
