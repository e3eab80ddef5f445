package observability

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
)

type captureLogger struct {
	mu     sync.Mutex
	debugs []map[string]interface{}
}

func (l *captureLogger) Debug(msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, fields)
}

func (l *captureLogger) Warn(msg string, fields map[string]interface{}) {}

func TestObservability_SpansAreLogged(t *testing.T) {
	log := &captureLogger{}
	obs := New("jobcrew-test", log, prometheus.WithRegisterer(promclient.NewRegistry()))
	defer obs.Shutdown()

	_, span := otel.Tracer("test").Start(context.Background(), "task job_research")
	span.SetAttributes(attribute.String("crew.task", "job_research"))
	span.End()

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.debugs, 1)
	assert.Equal(t, "task job_research", log.debugs[0]["span"])
	assert.Equal(t, "job_research", log.debugs[0]["crew.task"])
}

func TestObservability_RecordRunExportsMetrics(t *testing.T) {
	reg := promclient.NewRegistry()
	obs := New("jobcrew-test", &captureLogger{}, prometheus.WithRegisterer(reg))
	defer obs.Shutdown()

	obs.RecordRun(context.Background(), "completed", 2*time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "crew_runs") {
			found = true
		}
	}
	assert.True(t, found, "crew_runs metric should be exported")
}

func TestObservability_ZeroValueIsSafe(t *testing.T) {
	obs := &Observability{}
	assert.NotPanics(t, func() {
		obs.RecordRun(context.Background(), "failed", time.Second)
		obs.Shutdown()
	})
}
