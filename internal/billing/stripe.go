package billing

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// checkoutAPI is the subset of the Stripe client used here.
type checkoutAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the Stripe provider.
type StripeConfig struct {
	SecretKey   string
	Currency    string
	ProductName string
	Amount      float64
}

// Stripe creates one-off card payments through Stripe Checkout.
type Stripe struct {
	sessions    checkoutAPI
	currency    string
	productName string
	unitAmount  int64
	logger      *zap.Logger
}

// NewStripe returns a Stripe provider for cfg.
func NewStripe(cfg StripeConfig, logger *zap.Logger) *Stripe {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return newStripe(sc.CheckoutSessions, cfg, logger)
}

func newStripe(sessions checkoutAPI, cfg StripeConfig, logger *zap.Logger) *Stripe {
	return &Stripe{
		sessions:    sessions,
		currency:    cfg.Currency,
		productName: cfg.ProductName,
		unitAmount:  int64(math.Round(cfg.Amount * 100)),
		logger:      logger,
	}
}

// CreateCheckout starts a checkout session for one subscription period.
func (s *Stripe) CreateCheckout(ctx context.Context, username, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(s.productName),
					},
					UnitAmount: stripe.Int64(s.unitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(username),
	}
	params.Context = ctx

	cs, err := s.sessions.New(params)
	if err != nil {
		s.logger.Error("stripe checkout creation failed", zap.String("username", username), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	s.logger.Info("stripe checkout created", zap.String("username", username), zap.String("session_id", cs.ID))
	return cs.URL, nil
}

// VerifyCheckout confirms the session was paid and returns its owner.
func (s *Stripe) VerifyCheckout(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrNotPaid
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := s.sessions.Get(sessionID, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrNotPaid)
	}
	return cs.ClientReferenceID, nil
}
