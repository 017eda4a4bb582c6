package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/ppsverify/internal/config"
	"github.com/Lllllllleong/ppsverify/internal/handler"
	"github.com/Lllllllleong/ppsverify/internal/logger"
	"github.com/Lllllllleong/ppsverify/internal/metrics"
	"github.com/Lllllllleong/ppsverify/internal/services"
)

var (
	verifyHandler http.Handler
	once          sync.Once
	initErr       error
)

func init() {
	// "VerifyAttestation" is the entry point name configured in GCP.
	functions.HTTP("VerifyAttestation", verifyAttestation)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	verifier, err := services.NewVerifier(ctx, cfg, metrics.New(nil))
	if err != nil {
		return nil, err
	}
	h := handler.New(verifier, handler.Options{
		MaxFileSize:    cfg.MaxFileSize,
		AllowedOrigins: cfg.AllowedOrigins,
	}, log)
	return h.VerifyFunction(), nil
}

// verifyAttestation is the HTTP entry point called by the registration form.
func verifyAttestation(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		verifyHandler, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	verifyHandler.ServeHTTP(w, r)
}
