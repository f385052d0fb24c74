package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/shopspring/decimal"
)

// Email template tags
const (
	TagOrderConfirmation   = "order_confirmation"
	TagAdminNewOrder       = "admin_new_order"
	TagMemorialWelcome     = "memorial_welcome"
	TagSubscriptionPayment = "subscription_payment"
	TagSubscriptionFailed  = "subscription_payment_failed"
	TagSubscriptionCancel  = "subscription_canceled"
	TagReferralReward      = "referral_reward"
)

// FormatCents renders minor currency units as dollars, e.g. 3989 -> "$39.89"
func FormatCents(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

var emailTemplates = template.Must(template.New("emails").Funcs(template.FuncMap{
	"money": FormatCents,
	"date":  func(t time.Time) string { return t.Format("January 2, 2006") },
}).Parse(`
{{define "order_confirmation"}}<h1>Thank you for your order, {{.Order.CustomerName}}</h1>
<p>Your order <strong>{{.Order.OrderNumber}}</strong> has been received.</p>
<table>
<tr><td>Product</td><td>{{.Order.ProductName}} &times; {{.Order.Quantity}}</td></tr>
{{if .Order.Customization.PlaqueColor}}<tr><td>Plaque color</td><td>{{.Order.Customization.PlaqueColor}}</td></tr>{{end}}
<tr><td>Total</td><td>{{money .Order.AmountCents}}</td></tr>
<tr><td>Payment</td><td>{{.Order.PaymentStatus}}</td></tr>
</table>
<p>Ship to: {{.Order.ShippingAddress.Line1}}{{if .Order.ShippingAddress.Line2}}, {{.Order.ShippingAddress.Line2}}{{end}},
{{.Order.ShippingAddress.City}}, {{.Order.ShippingAddress.State}} {{.Order.ShippingAddress.Zip}}</p>
<p>Track your order at <a href="{{.OrderURL}}">{{.OrderURL}}</a>.</p>{{end}}

{{define "admin_new_order"}}<h1>New order {{.Order.OrderNumber}}</h1>
<p>{{.Order.CustomerName}} &lt;{{.Order.CustomerEmail}}&gt; {{.Order.CustomerPhone}}</p>
<p>{{.Order.ProductName}} ({{.Order.ProductType}}) &times; {{.Order.Quantity}} for {{money .Order.AmountCents}}, payment {{.Order.PaymentStatus}} via {{.Order.PaymentProvider}}.</p>
<p>Color: {{.Order.Customization.PlaqueColor}}. Personalization: {{.Order.Customization.Personalization}}</p>
<p>Add-ons: extra plaque {{.Order.Customization.AddonExtraPlaque}}, wooden stand {{.Order.Customization.AddonWoodenStand}}, gift box {{.Order.Customization.AddonGiftBox}}</p>{{end}}

{{define "memorial_welcome"}}<h1>The memorial for {{.Memorial.FullName}} is ready</h1>
<p>Share it with family and friends: <a href="{{.MemorialURL}}">{{.MemorialURL}}</a></p>
<p>Add photos, videos, music and stories from your dashboard: <a href="{{.DashboardURL}}">{{.DashboardURL}}</a></p>
{{if .QRCodeURL}}<p>Your QR code: <a href="{{.QRCodeURL}}"><img src="{{.QRCodeURL}}" alt="QR code" width="200"></a></p>{{end}}{{end}}

{{define "subscription_payment"}}<h1>Payment received</h1>
<p>Hi {{.Order.CustomerName}}, we received your subscription payment of {{money .AmountCents}} for order {{.Order.OrderNumber}}.</p>{{end}}

{{define "subscription_payment_failed"}}<h1>We could not process your payment</h1>
<p>Hi {{.Order.CustomerName}}, the subscription payment for order {{.Order.OrderNumber}} failed. Please update your card to keep the memorial active.</p>{{end}}

{{define "subscription_canceled"}}<h1>Your subscription was canceled</h1>
<p>Hi {{.Order.CustomerName}}, the subscription for order {{.Order.OrderNumber}} has been canceled.</p>{{end}}

{{define "referral_reward"}}<h1>You earned a referral reward</h1>
<p>{{if .IsReferrer}}Someone joined with your referral code.{{else}}Thanks for joining with a referral code.{{end}}
You have a {{money .AmountCents}} {{if .IsReferrer}}credit{{else}}discount{{end}} valid until {{date .ExpiresAt}}.</p>{{end}}
`))

func renderEmail(tag string, data interface{}) string {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, tag, data); err != nil {
		// the templates are static; a failure here is a programming error
		log.Printf("Failed to render %s email: %v", tag, err)
		return ""
	}
	return buf.String()
}

// OrderConfirmationEmail is sent to the customer when an order is recorded
func OrderConfirmationEmail(order *models.Order, siteURL string) Email {
	return Email{
		To:      []string{order.CustomerEmail},
		Subject: fmt.Sprintf("Order confirmation %s", order.OrderNumber),
		Tag:     TagOrderConfirmation,
		HTML: renderEmail(TagOrderConfirmation, map[string]interface{}{
			"Order":    order,
			"OrderURL": fmt.Sprintf("%s/orders/%s", siteURL, order.OrderNumber),
		}),
	}
}

// AdminOrderEmail notifies the shop operator of a new order
func AdminOrderEmail(order *models.Order, adminEmail string) Email {
	var to []string
	if adminEmail != "" {
		to = []string{adminEmail}
	}
	return Email{
		To:      to,
		Subject: fmt.Sprintf("New order %s (%s)", order.OrderNumber, FormatCents(order.AmountCents)),
		Tag:     TagAdminNewOrder,
		HTML:    renderEmail(TagAdminNewOrder, map[string]interface{}{"Order": order}),
	}
}

// WelcomeEmail tells the customer their memorial is live
func WelcomeEmail(to string, memorial *models.Memorial, memorialURL, dashboardURL string) Email {
	qrURL := ""
	if memorial.QRCodeURL != nil {
		qrURL = *memorial.QRCodeURL
	}
	return Email{
		To:      []string{to},
		Subject: fmt.Sprintf("The memorial for %s is ready", memorial.FullName),
		Tag:     TagMemorialWelcome,
		HTML: renderEmail(TagMemorialWelcome, map[string]interface{}{
			"Memorial":     memorial,
			"MemorialURL":  memorialURL,
			"DashboardURL": dashboardURL,
			"QRCodeURL":    qrURL,
		}),
	}
}

// SubscriptionEmail renders one of the subscription lifecycle notices
func SubscriptionEmail(tag string, order *models.Order, amountCents int64) Email {
	subjects := map[string]string{
		TagSubscriptionPayment: "Subscription payment received",
		TagSubscriptionFailed:  "Subscription payment failed",
		TagSubscriptionCancel:  "Subscription canceled",
	}
	return Email{
		To:      []string{order.CustomerEmail},
		Subject: fmt.Sprintf("%s - %s", subjects[tag], order.OrderNumber),
		Tag:     tag,
		HTML: renderEmail(tag, map[string]interface{}{
			"Order":       order,
			"AmountCents": amountCents,
		}),
	}
}

// ReferralRewardEmail announces a reward to one side of a referral
func ReferralRewardEmail(to string, reward *models.ReferralReward) Email {
	isReferrer := reward.RewardType == models.RewardTypeReferrerCredit
	subject := "You've received a referral discount"
	if isReferrer {
		subject = "Your referral earned you a credit"
	}
	return Email{
		To:      []string{to},
		Subject: subject,
		Tag:     TagReferralReward,
		HTML: renderEmail(TagReferralReward, map[string]interface{}{
			"IsReferrer":  isReferrer,
			"AmountCents": reward.AmountCents,
			"ExpiresAt":   reward.ExpiresAt,
		}),
	}
}
