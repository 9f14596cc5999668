package service

import (
	"regexp"
	"strings"

	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
)

const (
	receiptLength       = 10
	receiptMetadataName = "MpesaReceiptNumber"
)

// Heuristic: any uppercase alphanumeric run of receipt length inside the description.
var receiptPattern = regexp.MustCompile(`[A-Z0-9]{10,}`)

// ExtractReceipt prefers the structured metadata value and falls back to scanning the result
// description. Metadata values shorter than a full receipt are kept as given.
func ExtractReceipt(metadata map[string]string, description string) string {
	if receipt := strings.TrimSpace(metadata[receiptMetadataName]); receipt != "" {
		return truncateReceipt(receipt)
	}
	if match := receiptPattern.FindString(description); match != "" {
		return truncateReceipt(match)
	}
	return entity.ReceiptUnavailable
}

func truncateReceipt(receipt string) string {
	if len(receipt) > receiptLength {
		return receipt[:receiptLength]
	}
	return receipt
}
