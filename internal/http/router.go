package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterScaleRoutes 注册体脂秤 API 路由
func (r *Router) RegisterScaleRoutes(h *ScaleHandler) {
	// liveness
	r.Handle("/api/v1/health", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Health(w, req)
	})

	// entries list
	r.Handle("/api/v1/scale/entries", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetEntries(w, req)
	})

	// entries/{entry_id}/snapshots
	// entries/{entry_id}/people/{slug}/history
	// entries/{entry_id}/people/{slug}/history/export
	r.Handle("/api/v1/scale/entries/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		rest := strings.TrimPrefix(req.URL.Path, "/api/v1/scale/entries/")
		parts := strings.Split(strings.Trim(rest, "/"), "/")

		switch {
		case len(parts) == 2 && parts[1] == "snapshots":
			h.GetSnapshots(w, req, parts[0])
		case len(parts) == 4 && parts[1] == "people" && parts[3] == "history":
			h.GetHistory(w, req, parts[0], parts[2])
		case len(parts) == 5 && parts[1] == "people" && parts[3] == "history" && parts[4] == "export":
			h.ExportHistory(w, req, parts[0], parts[2])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// guest reassignment (control operation)
	r.Handle("/api/v1/scale/guest/reassign", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ReassignGuest(w, req)
	})
}
