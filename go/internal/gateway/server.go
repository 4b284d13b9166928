package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewServer wraps handler with CORS and serves HTTP/2 cleartext alongside
// HTTP/1.1 on port.
func NewServer(port string, allowedOrigins []string, handler http.Handler) *http.Server {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(c.Handler(handler), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
