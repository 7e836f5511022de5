package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "text info", level: "info", format: "text"},
		{name: "default format", level: "debug", format: ""},
		{name: "json", level: "warn", format: "JSON"},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var out bytes.Buffer
	logger, err := New("info", "json", &out)
	require.NoError(t, err)

	logger.WithField("total_bytes", 42).Info("stream metrics")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "stream metrics", entry["msg"])
	assert.EqualValues(t, 42, entry["total_bytes"])
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	l := logrus.New()
	assert.Same(t, l, OrDiscard(l))
}
