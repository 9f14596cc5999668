package service

import (
	"regexp"
	"strings"
)

var (
	localPhonePattern         = regexp.MustCompile(`^(07|01)\d{8}$`)
	internationalPhonePattern = regexp.MustCompile(`^254(7|1)\d{8}$`)
)

// NormalizePhone converts a local 07/01 number to the 254 format the gateway expects.
func NormalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "+")

	switch {
	case localPhonePattern.MatchString(phone):
		return "254" + phone[1:], nil
	case internationalPhonePattern.MatchString(phone):
		return phone, nil
	default:
		return "", ErrInvalidPhone
	}
}
