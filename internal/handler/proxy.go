package handler

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProxiedPrefixes are forwarded unchanged to the clinical backend in development
var ProxiedPrefixes = []string{"/api", "/chatbot", "/conversation"}

// RegisterDevProxy forwards the backend's own routes so a browser talking to
// the portal origin can reach them directly
func RegisterDevProxy(r gin.IRouter, backendURL string, logger *zap.Logger) error {
	target, err := url.Parse(backendURL)
	if err != nil {
		return fmt.Errorf("invalid backend url: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		logger.Error("dev proxy request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		w.WriteHeader(http.StatusBadGateway)
	}

	forward := func(c *gin.Context) {
		proxy.ServeHTTP(c.Writer, c.Request)
	}
	for _, prefix := range ProxiedPrefixes {
		r.Any(prefix+"/*path", forward)
	}

	logger.Info("dev proxy enabled", zap.String("backend", target.String()), zap.Strings("prefixes", ProxiedPrefixes))
	return nil
}
