package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/drestrepo/giftregistry/config"
)

func PaymentConfigMiddleware(paymentCfg *config.PaymentConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("payment_config", paymentCfg)
		c.Next()
	}
}

func GetPaymentConfig(c *gin.Context) *config.PaymentConfig {
	cfg, exists := c.Get("payment_config")
	if !exists {
		return nil
	}
	return cfg.(*config.PaymentConfig)
}
