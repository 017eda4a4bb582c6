package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/ppsverify/internal/config"
	"github.com/Lllllllleong/ppsverify/internal/logger"
	"github.com/Lllllllleong/ppsverify/internal/metrics"
	"github.com/Lllllllleong/ppsverify/internal/models"
	"github.com/Lllllllleong/ppsverify/internal/services"
)

var (
	trigger *services.OCRTrigger
	once    sync.Once
	initErr error
)

func init() {
	functions.CloudEvent("RecognizeUpload", recognizeUpload)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (*services.OCRTrigger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel))
	return services.NewOCRTrigger(ctx, cfg, metrics.New(nil))
}

// recognizeUpload handles GCS object finalize events for the attestation bucket.
func recognizeUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		trigger, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var event models.StorageEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID())
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Process logs failures with context; a returned error asks for a retry.
	return trigger.Process(ctx, event)
}
