package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（无需第三方路由）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

// NewRouter 创建路由器
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

// RegisterMonitorRoutes 注册查询与控制路由（与 Feuermelder 前端对齐）
func (r *Router) RegisterMonitorRoutes(h *MonitorHandler) {
	r.Handle("/api/sensors", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetSensors(w, req)
	})

	r.Handle("/api/history/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		key, ok := trimPathSuffix(req.URL.Path, "/api/history/", "")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.GetHistory(w, req, key)
	})

	r.Handle("/api/stats/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		key, ok := trimPathSuffix(req.URL.Path, "/api/stats/", "")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.GetStats(w, req, key)
	})

	r.Handle("/api/export/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		key, ok := trimPathSuffix(req.URL.Path, "/api/export/", "")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.ExportSeries(w, req, key)
	})

	r.Handle("/api/alerts", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetAlerts(w, req)
	})

	r.Handle("/api/alerts/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id, ok := trimPathSuffix(req.URL.Path, "/api/alerts/", "/ack")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.AckAlert(w, req, id)
	})

	r.Handle("/api/control/rate", postOnly(h.ControlRate))
	r.Handle("/api/control/enable", postOnly(h.ControlEnable))
	r.Handle("/api/control/buzzer", postOnly(h.ControlBuzzer))
	r.Handle("/api/control/led", postOnly(h.ControlLED))
}

func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}
