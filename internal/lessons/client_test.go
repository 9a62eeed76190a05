package lessons

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorcal/internal/model"
)

var jst = time.FixedZone("JST", 9*60*60)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(srv *httptest.Server, opts ...func(*Options)) *Client {
	o := Options{BaseURL: srv.URL + "/", Token: "secret", Location: jst}
	for _, fn := range opts {
		fn(&o)
	}
	return NewClient(o)
}

func TestListDecodesRecords(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id": 1, "title": "生徒Aとの面談", "start_time": "2025-05-25T01:00:00Z", "end_time": "2025-05-25T02:00:00Z", "description": "来学期の学習計画について", "color": "#C1E1FF"},
			{"id": 2, "title": "個別指導", "start_time": "2025-05-29T16:00:00", "end_time": "2025-05-29T17:00:00", "description": null}
		]`)
	})

	events, err := newClient(srv).List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, int64(1), events[0].ID)
	assert.True(t, events[0].Start.Equal(time.Date(2025, 5, 25, 10, 0, 0, 0, jst)))
	assert.Equal(t, 10, events[0].Start.Hour(), "converted to local wall clock")
	assert.Equal(t, "#C1E1FF", events[0].Color)

	assert.True(t, events[1].Start.Equal(time.Date(2025, 5, 29, 16, 0, 0, 0, jst)), "zone-less timestamps use the client location")
	assert.Equal(t, model.DefaultColor, events[1].Color)
	assert.Empty(t, events[1].Description)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodGet, (*calls)[0].method)
	assert.Equal(t, "/lesson-schedules/", (*calls)[0].path)
	assert.Equal(t, "Bearer secret", (*calls)[0].auth)
}

func TestListRejectsMalformedRecords(t *testing.T) {
	cases := map[string]struct {
		payload string
		field   string
	}{
		"missing id":       {`[{"title": "x", "start_time": "2025-05-25T10:00:00Z", "end_time": "2025-05-25T11:00:00Z"}]`, "id"},
		"empty title":      {`[{"id": 3, "title": "", "start_time": "2025-05-25T10:00:00Z", "end_time": "2025-05-25T11:00:00Z"}]`, "title"},
		"bad start":        {`[{"id": 3, "title": "x", "start_time": "tomorrow", "end_time": "2025-05-25T11:00:00Z"}]`, "start_time"},
		"missing end":      {`[{"id": 3, "title": "x", "start_time": "2025-05-25T10:00:00Z"}]`, "end_time"},
		"end before start": {`[{"id": 3, "title": "x", "start_time": "2025-05-25T10:00:00Z", "end_time": "2025-05-25T09:00:00Z"}]`, "end_time"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.payload)
			})
			events, err := newClient(srv).List(context.Background())
			assert.Nil(t, events)

			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, 0, derr.Index)
			assert.Equal(t, tc.field, derr.Field)
		})
	}

	t.Run("not an array", func(t *testing.T) {
		srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"detail": "oops"}`)
		})
		_, err := newClient(srv).List(context.Background())
		var derr *DecodeError
		assert.ErrorAs(t, err, &derr)
	})
}

func TestWritesSendSnakeCaseBody(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id": 9, "title": "面談", "start_time": "2025-05-25T10:00:00+09:00", "end_time": "2025-05-25T11:00:00+09:00", "description": "", "color": ""}`)
		}
	})
	c := newClient(srv)
	in := model.EventInput{
		Title: "面談",
		Start: time.Date(2025, 5, 25, 10, 0, 0, 0, jst),
		End:   time.Date(2025, 5, 25, 11, 0, 0, 0, jst),
	}

	created, err := c.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(9), created.ID)
	assert.Equal(t, model.DefaultColor, created.Color)

	_, err = c.Update(context.Background(), 9, in)
	require.NoError(t, err)
	require.NoError(t, c.Delete(context.Background(), 9))

	require.Len(t, *calls, 3)
	post, put, del := (*calls)[0], (*calls)[1], (*calls)[2]

	assert.Equal(t, http.MethodPost, post.method)
	assert.Equal(t, "/lesson-schedules/", post.path)
	assert.Equal(t, "2025-05-25T10:00:00+09:00", post.body["start_time"])
	assert.Equal(t, "2025-05-25T11:00:00+09:00", post.body["end_time"])
	assert.Equal(t, model.DefaultColor, post.body["color"])
	assert.Equal(t, "面談", post.body["title"])

	assert.Equal(t, http.MethodPut, put.method)
	assert.Equal(t, "/lesson-schedules/9/", put.path)

	assert.Equal(t, http.MethodDelete, del.method)
	assert.Equal(t, "/lesson-schedules/9/", del.path)
}

func TestErrorStatuses(t *testing.T) {
	status := http.StatusUnauthorized
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"detail": "nope"}`)
	})

	redirected := 0
	c := newClient(srv, func(o *Options) {
		o.Token = ""
		o.OnUnauthorized = func() { redirected++ }
	})

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, redirected)
	assert.Empty(t, (*calls)[0].auth, "no bearer header without a token")

	status = http.StatusNotFound
	_, err = c.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)

	status = http.StatusBadRequest
	err = c.Delete(context.Background(), 42)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.Code)
	assert.Contains(t, serr.Body, "nope")
	assert.Equal(t, 1, redirected)
}

func TestTransportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	c := newClient(srv, func(o *Options) { o.Timeout = 50 * time.Millisecond })
	_, err := c.List(context.Background())
	require.Error(t, err)

	var derr *DecodeError
	assert.False(t, errors.As(err, &derr))
}
