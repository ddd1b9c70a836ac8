package logs

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cellcare/cellcare_backend/config"
)

const lokiPushPath = "/loki/api/v1/push"

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type lokiPush struct {
	Streams []lokiStream `json:"streams"`
}

// lokiWriter pushes each JSON log line to Loki's push API.
type lokiWriter struct {
	client *resty.Client
	labels map[string]string
}

func newLokiHandler(cfg *config.Config, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(newLokiWriter(cfg), &slog.HandlerOptions{Level: level})
}

func newLokiWriter(cfg *config.Config) *lokiWriter {
	loki := cfg.Logging.Output.Loki
	client := resty.New().
		SetBaseURL(strings.TrimRight(loki.Endpoint, "/")).
		SetTimeout(3*time.Second).
		SetHeader("Content-Type", "application/json")
	if loki.Username != "" {
		client.SetBasicAuth(loki.Username, loki.Password)
	}

	return &lokiWriter{
		client: client,
		labels: map[string]string{
			"service": cfg.Observability.ServiceName,
			"env":     cfg.Server.Environment,
		},
	}
}

func (lw *lokiWriter) payload(p []byte, now time.Time) lokiPush {
	line := strings.TrimRight(string(p), "\n")
	return lokiPush{Streams: []lokiStream{{
		Stream: lw.labels,
		Values: [][2]string{{strconv.FormatInt(now.UnixNano(), 10), line}},
	}}}
}

func (lw *lokiWriter) Write(p []byte) (int, error) {
	resp, err := lw.client.R().
		SetBody(lw.payload(p, time.Now())).
		Post(lokiPushPath)
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("loki push: status %d", resp.StatusCode())
	}
	return len(p), nil
}
