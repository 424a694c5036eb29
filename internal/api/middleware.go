package api

import (
	"net/http"
	"time"

	xerrors "OpenMCP-Intent/internal/errors"
	"OpenMCP-Intent/internal/observability/metrics"
)

// statusRecorder 记录处理器写出的状态码。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// instrument 为每个路由上报请求量与耗时，handler 标签使用注册时的路由模式。
func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		metrics.ObserveHTTPRequest(pattern, r.Method, rec.status, time.Since(start))
	})
}

// limit 在全局令牌桶耗尽时直接返回 429。
func (s *Server) limit(pattern string, next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			metrics.ObserveRateLimited(pattern)
			w.Header().Set("Retry-After", "1")
			s.writeError(w, xerrors.New(xerrors.CodeRateLimited, "请求过于频繁，请稍后重试"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
