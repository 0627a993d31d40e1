package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"sections.ai/internal/persistence/mirror"
)

// buildMirror returns nil when SECTIONS_MIRROR is off.
func buildMirror(ctx context.Context, dataDir string, rec mirror.Recorder, logger *log.Logger) (*mirror.Mirror, error) {
	if !envBool("SECTIONS_MIRROR", false) {
		return nil, nil
	}
	cfg, ok := mirror.ConfigFromEnv()
	if !ok {
		return nil, fmt.Errorf("SECTIONS_MIRROR=true but SECTIONS_S3_BUCKET is empty")
	}
	client, err := mirror.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Printf("mirror enabled bucket=%s endpoint=%s", client.Bucket(), cfg.Endpoint)
	return mirror.New(client, dataDir, mirror.Options{
		Prefix:        strings.TrimSpace(os.Getenv("SECTIONS_S3_PREFIX")),
		Workers:       envInt("SECTIONS_MIRROR_WORKERS", 2),
		QueueCapacity: envInt("SECTIONS_MIRROR_QUEUE", 256),
		EnqueueWait:   time.Duration(envInt("SECTIONS_MIRROR_ENQUEUE_WAIT_MS", 25)) * time.Millisecond,
		Logger:        logger,
		Recorder:      rec,
	}), nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
