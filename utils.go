package tips

import (
	"fmt"

	"github.com/attentionrush/tips/mechanisms/evm"
)

// ResolvePaymentAddress picks the destination for an author's tips.
// The first verified address wins; the custody address is the fallback.
func ResolvePaymentAddress(author Author) (string, error) {
	if len(author.Verifications) > 0 && author.Verifications[0] != "" {
		return author.Verifications[0], nil
	}
	if author.CustodyAddress != "" {
		return author.CustodyAddress, nil
	}
	return "", ErrNoResolvableAddress
}

// ValidateContentItem performs basic validation on a content item
func ValidateContentItem(item ContentItem) error {
	if item.Hash == "" {
		return fmt.Errorf("content hash is required")
	}
	return nil
}

// ValidateRecipient performs basic validation on a transfer recipient
func ValidateRecipient(r Recipient) error {
	if !evm.IsValidAddress(r.Address) {
		return &PaymentError{
			Code:    ErrCodeInvalidAddress,
			Message: fmt.Sprintf("invalid recipient address: %s", r.Address),
		}
	}
	if r.Amount == "" {
		return &PaymentError{Code: ErrCodeInvalidAmount, Message: "amount is required"}
	}
	return nil
}
