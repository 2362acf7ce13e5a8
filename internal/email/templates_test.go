package email

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/cart-recovery/internal/model"
)

func testSession(t *testing.T) *model.CartSession {
	t.Helper()
	items, err := json.Marshal([]model.CartItem{
		{ProductID: "prod-1", Name: "Trail Shoes", Quantity: 1, Price: 89.99},
		{ProductID: "prod-2", Quantity: 2, Price: 12.50},
	})
	require.NoError(t, err)
	return &model.CartSession{
		SessionID:   "sess-123",
		ItemCount:   3,
		TotalAmount: 114.99,
		Items:       items,
	}
}

func TestBuildRecoveryBody_Default(t *testing.T) {
	body := BuildRecoveryBody("Pat", nil, testSession(t))

	assert.Contains(t, body, "Hi Pat,")
	assert.Contains(t, body, "Trail Shoes")
	// Items without a name fall back to the product id.
	assert.Contains(t, body, "prod-2")
	assert.Contains(t, body, "$89.99")
	assert.Contains(t, body, "$114.99")
	assert.NotContains(t, body, "{{")
}

func TestBuildRecoveryBody_AnonymousGreeting(t *testing.T) {
	body := BuildRecoveryBody("", nil, testSession(t))
	assert.Contains(t, body, "Hi there,")
}

func TestBuildRecoveryBody_CampaignTemplate(t *testing.T) {
	campaign := &model.RecoveryCampaign{
		Template:      "{{name}}, your {{itemCount}} items ($ {{totalAmount}}) are waiting. Use {{discountCode}}.",
		DiscountCode:  "COMEBACK10",
		DiscountType:  "percentage",
		DiscountValue: 10,
	}

	body := BuildRecoveryBody("Pat", campaign, testSession(t))

	assert.Contains(t, body, "Pat, your 3 items ($ 114.99) are waiting. Use COMEBACK10.")
	assert.Contains(t, body, "COMEBACK10")
	assert.Contains(t, body, "Use this code for 10% off")
}

func TestDiscountLabel(t *testing.T) {
	tests := []struct {
		name     string
		campaign model.RecoveryCampaign
		want     string
	}{
		{"percentage", model.RecoveryCampaign{DiscountType: "percentage", DiscountValue: 15}, "Use this code for 15% off"},
		{"fixed", model.RecoveryCampaign{DiscountType: "fixed", DiscountValue: 5}, "Use this code for $5.00 off"},
		{"unknown", model.RecoveryCampaign{DiscountType: ""}, "Use this code at checkout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, discountLabel(&tt.campaign))
		})
	}
}
