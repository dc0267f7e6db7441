package youtube

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		expect  time.Duration
		wantErr bool
	}{
		{"PT6M8S", 6*time.Minute + 8*time.Second, false},
		{"PT1H2M3S", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"PT45S", 45 * time.Second, false},
		{"PT2H", 2 * time.Hour, false},
		{"P1DT1H", 25 * time.Hour, false},
		{"P0D", 0, false},
		{"", 0, true},
		{"P", 0, true},
		{"PT", 0, true},
		{"6:08", 0, true},
		{"PT1.5S", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, d)
		})
	}
}
