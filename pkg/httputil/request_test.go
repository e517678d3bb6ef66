package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"North"}`))
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, "North", dest.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nmae":"typo"}`))
	assert.Error(t, ParseJSON(r, &dest))
}

func TestParseJSONOrError(t *testing.T) {
	var dest map[string]any
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))

	assert.False(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPathString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/tenants/t1", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "t1"})

	assert.Equal(t, "t1", PathString(r, "id"))
	assert.Equal(t, "", PathString(r, "user"))
}

func TestParseQueryTime(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?start=2026-04-01T00:00:00Z&bad=yesterday", nil)

	start, err := ParseQueryTime(r, "start")
	require.NoError(t, err)
	require.NotNil(t, start)
	assert.True(t, start.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))

	missing, err := ParseQueryTime(r, "end")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseQueryTime(r, "bad")
	assert.Error(t, err)
}

func TestParseQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?format=csv", nil)
	assert.Equal(t, "csv", ParseQueryString(r, "format", "json"))
	assert.Equal(t, "json", ParseQueryString(r, "other", "json"))
}
