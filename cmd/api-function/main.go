package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/callscribe/internal/app"
	"github.com/Lllllllleong/callscribe/internal/config"
)

var (
	appInstance *app.App
	once        sync.Once
	initErr     error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleAPI", handleAPI)
}

// main is required by the Go Functions Framework.
func main() {}

// handleAPI serves the whole HTTP API from a single function.
func handleAPI(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var cfg config.Config
		if cfg, initErr = config.Load(); initErr != nil {
			return
		}
		// Detached runs need a worker; nothing keeps running here after the
		// response is written.
		if initErr = cfg.RequireRedis("HTTP function"); initErr != nil {
			return
		}
		appInstance, initErr = app.New(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}
	appInstance.Router.ServeHTTP(w, r)
}
