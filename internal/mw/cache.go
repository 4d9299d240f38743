package mw

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"sync"
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

// ViewCache holds rendered GET responses keyed by the event they describe, so
// every view of one event can be dropped at once after an attendance write.
type ViewCache struct {
	store *cache.Cache
	ttl   time.Duration

	// mu orders invalidations against stores. A response is only stored if
	// no invalidation of its event happened while it was being rendered.
	mu    sync.Mutex
	epoch uint64
	gens  map[int64]uint64
}

// generation identifies the state of one event's views.
type generation struct {
	epoch, event uint64
}

// NewViewCache creates a cache whose entries expire after ttl.
func NewViewCache(ttl time.Duration) *ViewCache {
	return &ViewCache{store: cache.New(ttl, 2*ttl), ttl: ttl, gens: make(map[int64]uint64)}
}

func eventPrefix(eventID int64) string {
	return "event:" + strconv.FormatInt(eventID, 10) + ":"
}

func (v *ViewCache) generation(eventID int64) generation {
	return generation{epoch: v.epoch, event: v.gens[eventID]}
}

// InvalidateEvent drops every cached view of eventID, including views still
// being rendered when it is called.
func (v *ViewCache) InvalidateEvent(eventID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gens[eventID]++
	prefix := eventPrefix(eventID)
	for key := range v.store.Items() {
		if strings.HasPrefix(key, prefix) {
			v.store.Delete(key)
		}
	}
}

// InvalidateAll drops every cached view.
func (v *ViewCache) InvalidateAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.epoch++
	v.store.Flush()
}

// put stores resp unless the event was invalidated since gen was taken.
func (v *ViewCache) put(eventID int64, gen generation, key string, resp cachedResponse) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation(eventID) != gen {
		return false
	}
	v.store.Set(key, resp, v.ttl)
	return true
}

// Len returns the number of cached responses.
func (v *ViewCache) Len() int {
	return v.store.ItemCount()
}

// ByEvent caches successful GET responses under the event named by the
// route parameter param. Parameters that are not an event id pass through
// uncached.
func (v *ViewCache) ByEvent(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		eventID, err := strconv.ParseInt(c.Param(param), 10, 64)
		if err != nil {
			c.Next()
			return
		}

		key := eventPrefix(eventID) + c.Request.URL.RequestURI()
		if resp, found := v.store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, vals := range cached.headers {
				c.Writer.Header()[k] = vals
			}
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		v.mu.Lock()
		gen := v.generation(eventID)
		v.mu.Unlock()

		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses
		if blw.Status() >= 200 && blw.Status() < 300 {
			v.put(eventID, gen, key, cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			})
		}
	}
}
