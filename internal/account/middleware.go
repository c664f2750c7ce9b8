package account

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/noah-isme/storefront-api/internal/common"
)

// CustomerHeader carries the simulated login.
const CustomerHeader = "X-Customer-ID"

// DemoCustomerID is used when no customer header is sent.
const DemoCustomerID = "demo-customer"

var customerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Identify stores the customer from the X-Customer-ID header on the request context,
// falling back to defaultID.
func Identify(defaultID string) func(http.Handler) http.Handler {
	if strings.TrimSpace(defaultID) == "" {
		defaultID = DemoCustomerID
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(CustomerHeader))
			if id == "" {
				id = defaultID
			}
			if !customerIDPattern.MatchString(id) {
				common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer id", map[string]any{"header": CustomerHeader})
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithCustomerID(r.Context(), id)))
		})
	}
}
