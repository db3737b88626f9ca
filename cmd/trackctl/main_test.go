package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/control"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/httputil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/pipeline"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/recording"
)

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("threshold", func(t *testing.T) {
		t.Parallel()
		mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, `{"ok":true,"status":{"recording":"idle","confidence_threshold":0.6}}`)
		c := control.NewClient(mock, "http://tracker:8090/")

		out, err := dispatch(context.Background(), c, "threshold", []string{"0.6"})
		require.NoError(t, err)
		assert.Equal(t, 0.6, out.(pipeline.Status).Threshold)

		req, body := mock.Request(0)
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "http://tracker:8090/api/threshold", req.URL.String())
		assert.JSONEq(t, `{"threshold":0.6}`, body)
	})

	t.Run("conflict", func(t *testing.T) {
		t.Parallel()
		mock := httputil.NewMockHTTPClient().AddResponse(http.StatusConflict, `{"error":"invalid control action: not recording"}`)
		c := control.NewClient(mock, "http://tracker:8090")

		_, err := dispatch(context.Background(), c, "stop", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pipeline.ErrInvalidControlAction))
		assert.True(t, errors.Is(err, recording.ErrInvalidControlAction))
		var apiErr *control.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "invalid control action: not recording", apiErr.Message)
	})

	t.Run("bad arguments", func(t *testing.T) {
		t.Parallel()
		c := control.NewClient(httputil.NewMockHTTPClient(), "http://tracker:8090")
		_, err := dispatch(context.Background(), c, "threshold", nil)
		assert.Error(t, err)
		_, err = dispatch(context.Background(), c, "threshold", []string{"high"})
		assert.Error(t, err)
		_, err = dispatch(context.Background(), c, "dance", nil)
		assert.Error(t, err)
	})

	t.Run("classes", func(t *testing.T) {
		t.Parallel()
		mock := httputil.NewMockHTTPClient()
		c := control.NewClient(mock, "http://tracker:8090")
		mock.AddResponse(http.StatusOK, `{"ok":true,"status":{}}`)

		_, err := dispatch(context.Background(), c, "classes", []string{"person", "car"})
		require.NoError(t, err)
		_, body := mock.Request(0)
		assert.JSONEq(t, `{"classes":["person","car"]}`, body)
	})
}
