package storefronttest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iapkit/iapkit"
)

func TestScriptedCallsAfterCloseDeliverNothing(t *testing.T) {
	sf := New()
	sf.Stock(iapkit.Product{ID: "com.example.pro", Title: "Pro"})
	sf.MarkRestorable("com.example.pro")
	sf.Close()

	sf.RequestProducts([]iapkit.ProductID{"com.example.pro"})
	sf.AddPayment("com.example.pro")
	sf.RestoreCompletedTransactions()
	sf.Deliver(iapkit.TransactionsUpdated{})

	_, ok := <-sf.Events()
	assert.False(t, ok, "closed channel should yield no events")
}

func TestCloseIsIdempotent(t *testing.T) {
	sf := New()
	sf.Close()
	sf.Close()
}

func TestEventsBeforeCloseStillDrain(t *testing.T) {
	sf := New()
	sf.Stock(iapkit.Product{ID: "com.example.pro", Title: "Pro"})
	sf.RequestProducts([]iapkit.ProductID{"com.example.pro"})
	sf.Close()

	ev, ok := <-sf.Events()
	assert.True(t, ok)
	received, isReceived := ev.(iapkit.ProductsReceived)
	assert.True(t, isReceived)
	assert.Len(t, received.Products, 1)

	_, ok = <-sf.Events()
	assert.False(t, ok)
}
