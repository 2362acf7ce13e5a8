package email

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/cart-recovery/internal/model"
)

// BuildRecoveryBody builds the HTML body for a cart recovery email.
// The campaign template, when present, replaces {{name}}, {{itemCount}}
// and {{discountCode}} placeholders in its intro text.
func BuildRecoveryBody(name string, campaign *model.RecoveryCampaign, session *model.CartSession) string {
	greeting := "Hi there,"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}

	intro := "You left some items in your cart. They are still waiting for you."
	if campaign != nil && campaign.Template != "" {
		intro = renderTemplate(campaign.Template, name, session, campaign)
	}

	var itemsHTML strings.Builder
	var items []model.CartItem
	if len(session.Items) > 0 {
		_ = json.Unmarshal(session.Items, &items)
	}
	for _, item := range items {
		label := item.Name
		if label == "" {
			label = item.ProductID
		}
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">$%.2f</td>
			</tr>`,
			label, item.Quantity, item.Price,
		))
	}

	discountHTML := ""
	if campaign != nil && campaign.DiscountCode != "" {
		discountHTML = fmt.Sprintf(`
		<div style="background: #f0fff4; border: 1px dashed #38a169; padding: 15px; border-radius: 5px; margin: 20px 0; text-align: center;">
			<p style="margin: 0; font-size: 14px; color: #666;">%s</p>
			<p style="margin: 5px 0 0 0; font-size: 20px; font-weight: bold; font-family: monospace;">%s</p>
		</div>`, discountLabel(campaign), campaign.DiscountCode)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Your cart misses you</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">%s</p>
		<p>%s</p>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Cart total</span>
			<span style="font-size: 24px; font-weight: bold; color: #667eea; margin-left: 10px;">$%.2f</span>
		</div>
		%s

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This email was sent automatically. If you have already completed your purchase, please ignore it.
		</p>
	</div>
</body>
</html>`, greeting, intro, itemsHTML.String(), session.TotalAmount, discountHTML)
}

func renderTemplate(tmpl, name string, session *model.CartSession, campaign *model.RecoveryCampaign) string {
	r := strings.NewReplacer(
		"{{name}}", name,
		"{{itemCount}}", fmt.Sprintf("%d", session.ItemCount),
		"{{totalAmount}}", fmt.Sprintf("%.2f", session.TotalAmount),
		"{{discountCode}}", campaign.DiscountCode,
	)
	return r.Replace(tmpl)
}

func discountLabel(campaign *model.RecoveryCampaign) string {
	switch campaign.DiscountType {
	case "percentage":
		return fmt.Sprintf("Use this code for %.0f%% off", campaign.DiscountValue)
	case "fixed":
		return fmt.Sprintf("Use this code for $%.2f off", campaign.DiscountValue)
	default:
		return "Use this code at checkout"
	}
}
