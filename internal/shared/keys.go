package shared

import "fmt"

// ProductCacheKey builds the redis key holding a cached catalog product.
func ProductCacheKey(productID int64) string {
	return fmt.Sprintf("catalog:product:%d", productID)
}

// InvoiceIdempotencyKey scopes a client supplied Idempotency-Key to its actor.
func InvoiceIdempotencyKey(actorID int64, key string) string {
	return fmt.Sprintf("billing:invoice:%d:%s", actorID, key)
}
