// Package gin integrates iapkit entitlements with gin-based HTTP handlers.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iapkit/iapkit"
)

// EntitlementOptions is the options for the EntitlementMiddleware.
type EntitlementOptions struct {
	// RequireValidReceipt also rejects owners whose last receipt
	// validation failed.
	RequireValidReceipt bool

	// ProductResolver derives the product gating a request. When nil, the
	// middleware's static product identifier is used.
	ProductResolver func(c *gin.Context) iapkit.ProductID
}

// Options is the type for the options for the EntitlementMiddleware.
type Options func(*EntitlementOptions)

// WithRequireValidReceipt is an option for the EntitlementMiddleware to also
// require a valid receipt on top of local ownership.
func WithRequireValidReceipt() Options {
	return func(options *EntitlementOptions) {
		options.RequireValidReceipt = true
	}
}

// WithProductResolver is an option for the EntitlementMiddleware to derive
// the gating product from the request instead of using a static identifier.
func WithProductResolver(resolver func(c *gin.Context) iapkit.ProductID) Options {
	return func(options *EntitlementOptions) {
		options.ProductResolver = resolver
	}
}

// EntitlementMiddleware gates routes on locally recorded ownership of a
// product. Requests for unowned products receive 402 with a JSON body
// naming the product, so clients can route the user into the purchase flow.
func EntitlementMiddleware(mgr *iapkit.Manager, product iapkit.ProductID, opts ...Options) gin.HandlerFunc {
	options := &EntitlementOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return func(c *gin.Context) {
		id := product
		if options.ProductResolver != nil {
			id = options.ProductResolver(c)
		}

		owned, receiptValid := mgr.IsPurchased(id)
		if !owned {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"code":    "payment_required",
				"product": string(id),
			})
			return
		}
		if options.RequireValidReceipt && !receiptValid {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"code":    "receipt_invalid",
				"product": string(id),
			})
			return
		}

		c.Next()
	}
}
