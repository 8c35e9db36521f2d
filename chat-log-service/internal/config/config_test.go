package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreEnabled(t *testing.T) {
	s := StoreConfig{Sinks: " Cassandra, object ,,"}
	assert.Equal(t, []string{SinkCassandra, SinkObject}, s.Enabled())
	assert.Empty(t, StoreConfig{}.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sinks   string
		wantErr bool
	}{
		{name: "cassandra", sinks: "cassandra"},
		{name: "both", sinks: "cassandra,object"},
		{name: "empty", sinks: "", wantErr: true},
		{name: "unknown", sinks: "cassandra,postgres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Store: StoreConfig{Sinks: tt.sinks}}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
