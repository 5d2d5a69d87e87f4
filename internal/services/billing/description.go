package billing

import "fmt"

// Description строит человекочитаемое описание вебхук-события по его типу
// и полезной нагрузке.
func Description(eventType string, payload map[string]any) string {
	switch eventType {
	case "customer.subscription.created":
		return fmt.Sprintf("New subscription created for %s plan", planNameOf(payload))
	case "customer.subscription.updated":
		return fmt.Sprintf("Subscription updated to %s plan", planNameOf(payload))
	case "customer.subscription.deleted":
		return "Subscription cancelled"
	case "invoice.payment_succeeded":
		return fmt.Sprintf("Payment of $%v succeeded", amountOf(payload))
	case "invoice.payment_failed":
		return fmt.Sprintf("Payment of $%v failed", amountOf(payload))
	default:
		return "Webhook event: " + eventType
	}
}

func planNameOf(payload map[string]any) any {
	if sub, ok := payload["subscription"].(map[string]any); ok {
		if name, ok := sub["planName"]; ok && name != nil {
			return name
		}
	}
	return "Unknown"
}

func amountOf(payload map[string]any) any {
	if amount, ok := payload["amount"]; ok {
		return amount
	}
	return 0
}
