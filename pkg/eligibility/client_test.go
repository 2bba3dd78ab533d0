package eligibility

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline-health/donor-api/internal/model"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
)

const pngImage = "data:image/png;base64,aGVsbG8="

func TestCheck_ParsesJSONVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Equal(t, "image/png", req.Contents[0].Parts[1].InlineData.MimeType)
		assert.Equal(t, "aGVsbG8=", req.Contents[0].Parts[1].InlineData.Data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"` +
			"```json\\n{\\\"eligible\\\":\\\"yes\\\",\\\"reason\\\":\\\"fit\\\",\\\"extracted_fields\\\":{\\\"blood_group\\\":\\\"B+\\\"}}\\n```" +
			`"}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "gemini-test", APIKey: "key-1"}, logger.NewNop(), nil)
	res, err := c.Check(context.Background(), pngImage)

	require.NoError(t, err)
	assert.Equal(t, model.VerdictYes, res.Eligible)
	assert.Equal(t, "fit", res.Reason)
	assert.Equal(t, "B+", res.ExtractedFields["blood_group"])
}

func TestCheck_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, logger.NewNop(), nil)
	_, err := c.Check(context.Background(), pngImage)

	assert.True(t, apperrors.Is(err, apperrors.ErrUpstreamUnavailable))
}

func TestCheck_InvalidImage(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused", Model: "m"}, logger.NewNop(), nil)
	_, err := c.Check(context.Background(), "data:image/png;base64,@@@")

	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestParseAnswer_FreeText(t *testing.T) {
	assert.Equal(t, model.VerdictYes, ParseAnswer("Yes.").Eligible)
	assert.Equal(t, model.VerdictNo, ParseAnswer("No, hemoglobin too low").Eligible)
	assert.Equal(t, model.VerdictNo, ParseAnswer("").Eligible)
	assert.NotNil(t, ParseAnswer("").ExtractedFields)
}

func TestSplitImage_BareBase64(t *testing.T) {
	mime, data, err := SplitImage("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, "aGVsbG8=", data)
}
