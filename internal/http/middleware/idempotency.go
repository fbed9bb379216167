package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"adboard-api/internal/logger"
	"adboard-api/internal/repo"

	"go.uber.org/zap"
)

const maxIdempotencyKeyLen = 255

// IdempotencyMiddleware replays the stored response for mutating
// requests that arrive again with the same Idempotency-Key. Requests
// without the header pass through untouched, and only 2xx responses
// are stored.
func IdempotencyMiddleware(idempotencyRepo *repo.IdempotencyRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.GetLogger(r.Context())

			if !mutatingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(idempotencyKey) > maxIdempotencyKeyLen {
				log.Warn("idempotency key too long", zap.Int("length", len(idempotencyKey)))
				http.Error(w, "idempotency key must be 255 characters or less", http.StatusBadRequest)
				return
			}

			workspaceID, ok := GetWorkspaceID(r.Context())
			if !ok {
				log.Error("workspace_id not found in context for idempotency")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			keyHash := repo.HashKey(idempotencyKey)
			w.Header().Set("X-Idempotency-Key-Hash", keyHash)

			cached, err := idempotencyRepo.Lookup(r.Context(), workspaceID, keyHash)
			if err != nil {
				log.Error("failed to check idempotency key", zap.Error(err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if cached != nil {
				replayCached(w, log, keyHash, cached)
				return
			}

			// Buffer the body so it can be stored alongside the response
			var requestBody []byte
			if r.Body != nil {
				requestBody, err = io.ReadAll(r.Body)
				if err != nil {
					log.Error("failed to read request body", zap.Error(err))
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
				headers:        make(map[string]string),
			}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode < 200 || recorder.statusCode >= 300 {
				return
			}

			for _, key := range []string{"Content-Type", "Location"} {
				if val := recorder.Header().Get(key); val != "" {
					recorder.headers[key] = val
				}
			}

			err = idempotencyRepo.Save(r.Context(), repo.SaveParams{
				WorkspaceID:     workspaceID,
				KeyHash:         keyHash,
				OriginalKey:     idempotencyKey,
				Method:          r.Method,
				Path:            r.URL.Path,
				RequestPayload:  json.RawMessage(requestBody),
				Status:          recorder.statusCode,
				ResponseBody:    json.RawMessage(recorder.body.Bytes()),
				ResponseHeaders: recorder.headers,
			})
			if err != nil {
				// The mutation already happened; losing replay
				// protection is better than failing the request
				log.Error("failed to store idempotency result", zap.Error(err))
				return
			}
			log.Info("stored idempotent request result",
				zap.String("key_hash", keyHash),
				zap.Int("status", recorder.statusCode),
			)
		})
	}
}

func mutatingMethod(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func replayCached(w http.ResponseWriter, log *zap.Logger, keyHash string, cached *repo.CachedResponse) {
	log.Info("returning cached response for idempotent request",
		zap.String("key_hash", keyHash),
		zap.Int("status", cached.Status),
	)
	for k, v := range cached.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("X-Idempotency-Replay", "true")
	w.WriteHeader(cached.Status)
	_, _ = w.Write(cached.Body)
}

// responseRecorder tees the response so a successful result can be
// stored for replay.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	headers    map[string]string
	written    bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.written {
		rr.statusCode = code
		rr.written = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.written {
		rr.WriteHeader(http.StatusOK)
	}
	rr.body.Write(b)
	return rr.ResponseWriter.Write(b)
}
