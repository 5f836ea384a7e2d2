package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TaskForge/internal/domain/tenant"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyBody   = 1 << 20 // 1 MB
	maxIdempotencyKeyLen = 255
)

// idempotencyEntry stores a cached HTTP response. Headers holds only what
// the wrapped handler set; headers of outer middleware are produced fresh
// on every request.
type idempotencyEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that replays the stored response of a
// POST/PUT/PATCH/DELETE carrying an Idempotency-Key seen before. Keys are
// namespaced by tenant and user, so the same key sent by two callers never
// collides.
// Server errors are not stored. A nil kv disables the middleware.
func Idempotency(kv jetstream.KeyValue) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if kv == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				writeJSONError(w, http.StatusBadRequest, "idempotency key too long")
				return
			}
			tid, err := tenant.IDFromContext(r.Context())
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			var uid int64
			if u := UserFromContext(r.Context()); u != nil {
				uid = u.ID
			}
			kvKey := idempotencyKVKey(tid, uid, r.Method, r.URL.Path, key)

			entry, err := kv.Get(r.Context(), kvKey)
			switch {
			case err == nil:
				var cached idempotencyEntry
				if err := json.Unmarshal(entry.Value(), &cached); err == nil {
					for k, vals := range cached.Headers {
						w.Header()[http.CanonicalHeaderKey(k)] = vals
					}
					w.Header().Set(headerReplayed, "true")
					w.WriteHeader(cached.StatusCode)
					_, _ = w.Write(cached.Body)
					return
				}
				slog.WarnContext(r.Context(), "idempotency: corrupt cache entry", "key", kvKey)
			case !errors.Is(err, jetstream.ErrKeyNotFound):
				slog.WarnContext(r.Context(), "idempotency: lookup failed", "key", kvKey, "error", err)
			}

			outer := w.Header().Clone()
			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				return
			}
			cached := idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    handlerHeaders(outer, w.Header()),
				Body:       rec.body.Bytes(),
			}
			data, err := json.Marshal(cached)
			if err != nil {
				return
			}
			if _, err := kv.Put(context.WithoutCancel(r.Context()), kvKey, data); err != nil {
				slog.WarnContext(r.Context(), "idempotency: failed to store response", "key", kvKey, "error", err)
			}
		})
	}
}

// idempotencyKVKey hashes the client key together with the route so the
// result only uses characters valid in a KV key.
func idempotencyKVKey(tenantID, userID int64, method, path, key string) string {
	h := sha256.Sum256([]byte(method + " " + path + "\n" + key))
	return "t" + strconv.FormatInt(tenantID, 10) + ".u" + strconv.FormatInt(userID, 10) + "." + hex.EncodeToString(h[:])
}

// handlerHeaders returns the headers in after that differ from before.
func handlerHeaders(before, after http.Header) http.Header {
	out := http.Header{}
	for k, v := range after {
		if !slices.Equal(before[k], v) {
			out[k] = slices.Clone(v)
		}
	}
	return out
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
