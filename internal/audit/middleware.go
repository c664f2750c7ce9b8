package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/obs"
)

// HTTPRecorder records mutating requests after they have been handled.
type HTTPRecorder struct {
	Service   *Service
	OnError   func(error)
	ActorFunc func(*http.Request) string
	// ResourceIDParams are chi URL params tried in order for the resource id.
	ResourceIDParams []string
}

// Middleware records POST, PUT, PATCH and DELETE requests. Reads pass through.
func (r HTTPRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.Service == nil || !r.Service.Enabled || !mutating(req.Method) {
			next.ServeHTTP(w, req)
			return
		}

		recorder := obs.NewStatusRecorder(w)
		next.ServeHTTP(recorder, req)

		if err := r.Service.Record(req.Context(), r.actor(req), "", "", r.resourceID(req), req, recorder.Status(), nil); err != nil && r.OnError != nil {
			r.OnError(err)
		}
	})
}

func (r HTTPRecorder) actor(req *http.Request) string {
	if r.ActorFunc != nil {
		return r.ActorFunc(req)
	}
	if user, _, ok := req.BasicAuth(); ok {
		return user
	}
	return ""
}

func (r HTTPRecorder) resourceID(req *http.Request) string {
	for _, param := range r.ResourceIDParams {
		if v := chi.URLParam(req, param); v != "" {
			return v
		}
	}
	return ""
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
