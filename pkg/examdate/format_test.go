package examdate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidDateFormat(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2024-10-17 09:30:00", true},
		{"2024-02-29 00:00:00", true},
		{"2023-02-29 00:00:00", false},
		{"2024-10-17", false},
		{"2024-10-17T09:30:00", false},
		{" 2024-10-17 09:30:00", false},
		{"2024-13-01 00:00:00", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidDateFormat(tt.in))
		})
	}
}

func TestNormalizeForStorage(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"canonical unchanged", "2024-10-17 09:30:00", "2024-10-17 09:30:00", true},
		{"day only", "2024-10-17", "2024-10-17 00:00:00", true},
		{"slashes", "2024/10/17 08:01:02", "2024-10-17 08:01:02", true},
		{"rfc3339 keeps wall clock", "2024-10-17T09:30:00+08:00", "2024-10-17 09:30:00", true},
		{"compact", "20241017", "2024-10-17 00:00:00", true},
		{"minutes only", "2024-10-17 09:30", "2024-10-17 09:30:00", true},
		{"garbage", "next tuesday", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeForStorage(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDatePartAndParseDay(t *testing.T) {
	assert.Equal(t, "2024-10-17", DatePart("2024-10-17 09:30:00"))
	assert.Equal(t, "short", DatePart("short"))

	day, err := ParseDay("2024-10-17 23:59:59")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC), day)
}
