package app

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/metrics"
	"github.com/vladislavdragonenkov/straycare/internal/service/payment"
	"github.com/vladislavdragonenkov/straycare/internal/service/payment/paypal"
)

var errBreakerOpen = errors.New("payment provider circuit is open")

// initPaymentProvider оборачивает PayPal (или mock без учётных данных) в circuit breaker.
func initPaymentProvider(cfg Config, m *metrics.ShelterMetrics, logger *log.Entry) (domain.PaymentProvider, func(context.Context) error, error) {
	var next domain.PaymentProvider
	if cfg.PayPalEnabled() {
		client, err := paypal.NewClient(paypal.Config{
			BaseURL:      cfg.PayPalBaseURL,
			ClientID:     cfg.PayPalClientID,
			ClientSecret: cfg.PayPalClientSecret,
			Timeout:      cfg.PayPalTimeout,
		}, paypal.WithLogger(logger.WithField("component", "paypal-client")))
		if err != nil {
			return nil, nil, err
		}
		next = client
		logger.WithField("base_url", cfg.PayPalBaseURL).Info("paypal provider configured")
	} else {
		next = payment.NewMockProvider()
		logger.Warn("paypal credentials are not set, using mock payment provider")
	}

	breaker := payment.NewCircuitBreaker(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout, logger.WithField("component", "payment-breaker"))
	check := func(context.Context) error {
		if breaker.State() == payment.CircuitOpen {
			return errBreakerOpen
		}
		return nil
	}
	return payment.NewGuardedProvider(next, breaker, m), check, nil
}
