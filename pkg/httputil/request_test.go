package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?depth=5", nil)

	val, err := ParseQueryInt(req, "depth", 1)

	assert.NoError(t, err)
	assert.Equal(t, 5, val)
}

func TestParseQueryInt_Default(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	val, err := ParseQueryInt(req, "depth", 1)

	assert.NoError(t, err)
	assert.Equal(t, 1, val)
}

func TestParseQueryInt_Invalid(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?depth=deep", nil)

	_, err := ParseQueryInt(req, "depth", 0)

	assert.EqualError(t, err, "invalid integer for query param depth: deep")
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?format=csv", nil)

	assert.Equal(t, "csv", ParseQueryString(req, "format", "yaml"))
	assert.Equal(t, "usage", ParseQueryString(req, "direction", "usage"))
}

func TestParseQueryBool(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		want    bool
		wantErr bool
	}{
		{"true", "/test?reports=true", true, false},
		{"one", "/test?reports=1", true, false},
		{"default", "/test", false, false},
		{"invalid", "/test?reports=maybe", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, err := ParseQueryBool(httptest.NewRequest("GET", tt.target, nil), "reports", false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, val)
		})
	}
}
