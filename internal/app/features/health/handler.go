package health

import (
	"context"
	"net/http"
	"time"

	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// healthRef is looked up, never written, to prove the file store answers.
const healthRef = "healthcheck/ping"

// Check is one dependency check.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

type Handler struct {
	Checks  []Check
	Started time.Time
	Log     *zap.Logger
}

// NewHandler checks MongoDB and, when files is non-nil, the file store.
func NewHandler(client *mongo.Client, files filestore.Store, logger *zap.Logger) *Handler {
	checks := []Check{{
		Name: "database",
		Run:  func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
	}}
	if files != nil {
		checks = append(checks, Check{
			Name: "storage",
			Run: func(ctx context.Context) error {
				_, err := files.Exists(ctx, healthRef)
				return err
			},
		})
	}
	return &Handler{Checks: checks, Started: time.Now(), Log: logger}
}

type healthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Serve handles GET /health. Every check runs under the ping timeout; any
// failure turns the response into a 503 with that check marked "down".
// Driver errors are logged, not returned.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(h.Started).Round(time.Second).String(),
		Checks: make(map[string]string, len(h.Checks)),
	}
	for _, c := range h.Checks {
		if err := c.Run(ctx); err != nil {
			h.Log.Error("health check failed", zap.String("check", c.Name), zap.Error(err))
			resp.Status = "error"
			resp.Checks[c.Name] = "down"
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	if resp.Status != "ok" {
		jsonutil.Write(w, http.StatusServiceUnavailable, resp)
		return
	}
	jsonutil.OK(w, resp)
}

// ServeLive handles GET /health/live. It touches no dependency.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, healthResponse{Status: "ok", Uptime: time.Since(h.Started).Round(time.Second).String()})
}
