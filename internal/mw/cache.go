package mw

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache keeps successful GET responses in memory, grouped into named
// scopes so a write only drops the answers it can make stale.
type ResponseCache struct {
	store *cache.Cache
	ttl   time.Duration
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: cache.New(ttl, 2*ttl), ttl: ttl}
}

func scopeKey(scope, uri string) string {
	return scope + "|" + uri
}

// Cache serves GET requests of scope from memory, keyed by request URI.
func (rc *ResponseCache) Cache(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := scopeKey(scope, c.Request.RequestURI)
		if v, found := rc.store.Get(key); found {
			hit := v.(cachedResponse)
			header := c.Writer.Header()
			for k, vals := range hit.headers {
				header[k] = vals
			}
			header.Set("X-Cache", "HIT")
			c.Writer.WriteHeader(hit.status)
			_, _ = c.Writer.Write(hit.body)
			c.Abort()
			return
		}

		recorder := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		if status := recorder.Status(); status >= 200 && status < 300 {
			rc.store.Set(key, cachedResponse{
				status:  status,
				headers: recorder.Header().Clone(),
				body:    recorder.body.Bytes(),
			}, rc.ttl)
		}
	}
}

// Invalidate drops every cached response of scopes after a successful
// mutating request. Reads and failed writes leave the cache alone.
func (rc *ResponseCache) Invalidate(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			return
		}
		if status := c.Writer.Status(); status >= 200 && status < 300 {
			rc.Drop(scopes...)
		}
	}
}

// Drop removes the cached responses of scopes.
func (rc *ResponseCache) Drop(scopes ...string) {
	for key := range rc.store.Items() {
		for _, scope := range scopes {
			if strings.HasPrefix(key, scope+"|") {
				rc.store.Delete(key)
				break
			}
		}
	}
}
