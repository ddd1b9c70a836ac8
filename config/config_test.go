package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
database:
  host: db.internal
  user: cellcare
  dbname: cellcare
server:
  environment: development
  timezone: Asia/Shanghai
exam_date:
  base_url: http://pacs.internal:8090
  timeout_ms: 5000
  retry_count: 3
  retry_delay_ms: 1000
dedup:
  dependents:
    - table: laboratory_items
      column: assessment_id
    - table: health_reports
      column: assessment_id
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return dir
}

func TestReadConfig(t *testing.T) {
	dir := writeConfig(t, sampleConfig)

	cfg, err := ReadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "http://pacs.internal:8090", cfg.ExamDate.BaseURL)
	assert.Equal(t, 3, cfg.ExamDate.RetryCount)
	assert.Len(t, cfg.Dedup.Dependents, 2)
	assert.Equal(t, "laboratory_items", cfg.Dedup.Dependents[0].Table)
	assert.Equal(t, "Asia/Shanghai", cfg.Server.Location().String())
	assert.Equal(t, "cellcare_backend", cfg.Observability.ServiceName)
}

func TestReadConfig_EnvOverride(t *testing.T) {
	dir := writeConfig(t, sampleConfig)
	t.Setenv("CELLCARE_EXAM_DATE_RETRY_COUNT", "5")
	t.Setenv("CELLCARE_DATABASE_HOST", "override.internal")

	cfg, err := ReadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.ExamDate.RetryCount)
	assert.Equal(t, "override.internal", cfg.Database.Host)
}

func TestReadConfig_EnvOnly(t *testing.T) {
	t.Setenv("CELLCARE_DATABASE_HOST", "db")
	t.Setenv("CELLCARE_EXAM_DATE_HOST", "pacs")
	t.Setenv("CELLCARE_EXAM_DATE_PORT", "8090")
	t.Setenv("CELLCARE_EXAM_DATE_TIMEOUT_MS", "3000")
	t.Setenv("CELLCARE_EXAM_DATE_RETRY_COUNT", "2")
	t.Setenv("CELLCARE_EXAM_DATE_RETRY_DELAY_MS", "500")

	cfg, err := ReadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "pacs", cfg.ExamDate.Host)
	assert.Equal(t, 8090, cfg.ExamDate.Port)
}

func TestReadConfig_MissingEndpointIsFatal(t *testing.T) {
	dir := writeConfig(t, `
database:
  host: db.internal
exam_date:
  timeout_ms: 5000
  retry_count: 3
  retry_delay_ms: 1000
`)

	_, err := ReadConfig(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExamDateEndpointMissing))
}

func TestExamDateConfigValidate(t *testing.T) {
	valid := ExamDateConfig{BaseURL: "http://x", TimeoutMs: 1, RetryCount: 1, RetryDelayMs: 1}

	tests := []struct {
		name    string
		mutate  func(*ExamDateConfig)
		wantErr error
	}{
		{"valid base url", func(*ExamDateConfig) {}, nil},
		{"host and port", func(c *ExamDateConfig) { c.BaseURL = ""; c.Host = "pacs"; c.Port = 80 }, nil},
		{"host without port", func(c *ExamDateConfig) { c.BaseURL = ""; c.Host = "pacs" }, ErrExamDateEndpointMissing},
		{"no endpoint", func(c *ExamDateConfig) { c.BaseURL = "" }, ErrExamDateEndpointMissing},
		{"zero timeout", func(c *ExamDateConfig) { c.TimeoutMs = 0 }, ErrExamDateTimeout},
		{"zero retries", func(c *ExamDateConfig) { c.RetryCount = 0 }, ErrExamDateRetryCount},
		{"zero delay", func(c *ExamDateConfig) { c.RetryDelayMs = 0 }, ErrExamDateRetryDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_RejectsUnsafeDependentTable(t *testing.T) {
	cfg := Config{
		ExamDate: ExamDateConfig{BaseURL: "http://x", TimeoutMs: 1, RetryCount: 1, RetryDelayMs: 1},
		Dedup: DedupConfig{Dependents: []DependentTableConfig{
			{Table: "reports; DROP TABLE assessments", Column: "assessment_id"},
		}},
	}

	assert.Error(t, cfg.Validate())
}
