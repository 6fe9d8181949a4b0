package gin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iapkit/iapkit"
	"github.com/iapkit/iapkit/store"
	"github.com/iapkit/iapkit/storefronttest"
)

func newEntitledRouter(t *testing.T, opts ...Options) (*gin.Engine, *iapkit.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr := iapkit.NewManager(storefronttest.New(), store.NewMemoryStore())
	mgr.AddProduct("pro_upgrade")

	r := gin.New()
	r.GET("/pro", EntitlementMiddleware(mgr, "pro_upgrade", opts...), func(c *gin.Context) {
		c.String(http.StatusOK, "pro content")
	})
	return r, mgr
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestEntitlementMiddlewareRejectsUnowned(t *testing.T) {
	r, _ := newEntitledRouter(t)

	w := get(r, "/pro")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.JSONEq(t, `{"code": "payment_required", "product": "pro_upgrade"}`, w.Body.String())
}

func TestEntitlementMiddlewarePassesOwned(t *testing.T) {
	r, mgr := newEntitledRouter(t)
	require.NoError(t, mgr.MarkOwned("pro_upgrade"))

	w := get(r, "/pro")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pro content", w.Body.String())
}

func TestEntitlementMiddlewareRequiresValidReceipt(t *testing.T) {
	r, mgr := newEntitledRouter(t, WithRequireValidReceipt())
	require.NoError(t, mgr.MarkOwned("pro_upgrade"))

	// Owned, but no validation has succeeded yet.
	w := get(r, "/pro")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.JSONEq(t, `{"code": "receipt_invalid", "product": "pro_upgrade"}`, w.Body.String())
}

func TestEntitlementMiddlewareProductResolver(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mgr := iapkit.NewManager(storefronttest.New(), store.NewMemoryStore())
	mgr.AddProducts("pro_upgrade", "remove_ads")
	require.NoError(t, mgr.MarkOwned("remove_ads"))

	r := gin.New()
	resolver := func(c *gin.Context) iapkit.ProductID {
		return iapkit.ProductID(c.Param("product"))
	}
	r.GET("/content/:product", EntitlementMiddleware(mgr, "", WithProductResolver(resolver)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, get(r, "/content/remove_ads").Code)
	assert.Equal(t, http.StatusPaymentRequired, get(r, "/content/pro_upgrade").Code)
}
