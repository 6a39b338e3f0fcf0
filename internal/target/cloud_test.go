package target

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/runway-sync/runway/internal/cloudsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloud struct {
	creates     atomic.Int32
	polls       atomic.Int32
	createFail  int32 // leading create calls answered with createCode
	createCode  int
	pollsToDone int32
	opError     bool
}

func (f *fakeCloud) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /assets/v1/assets", func(w http.ResponseWriter, r *http.Request) {
		n := f.creates.Add(1)
		if n <= f.createFail {
			writeJSON(w, f.createCode, cloudsdk.APIError{Code: "ERR", Message: "create failed"})
			return
		}
		require.NoError(t, r.ParseMultipartForm(1<<20))
		var meta cloudsdk.CreateAssetRequest
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("request")), &meta))
		writeJSON(w, http.StatusOK, cloudsdk.Operation{OperationID: "op-" + meta.AssetType})
	})
	mux.HandleFunc("GET /assets/v1/operations/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := f.polls.Add(1)
		op := cloudsdk.Operation{OperationID: r.PathValue("id")}
		if n >= f.pollsToDone {
			op.Done = true
			if f.opError {
				op.Error = &cloudsdk.APIError{Code: "INVALID_ARGUMENT", Message: "moderated"}
			} else {
				op.Response = &cloudsdk.AssetResult{AssetID: "1001"}
			}
		}
		writeJSON(w, http.StatusOK, op)
	})
	mux.HandleFunc("GET /v1/asset", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<roblox><url>http://www.roblox.com/asset/?id=2002</url></roblox>`)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestCloudAdapter(t *testing.T, f *fakeCloud) *CloudAdapter {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	sdk, err := cloudsdk.New(cloudsdk.Config{
		BaseURL:         srv.URL,
		DeliveryURL:     srv.URL,
		APIKey:          "key",
		RetryCount:      1,
		RetryBackoffMin: time.Millisecond,
		RetryBackoffMax: time.Millisecond,
	})
	require.NoError(t, err)

	a, err := NewCloudAdapter(sdk, CloudOptions{
		Creator:     cloudsdk.Creator{GroupID: "7"},
		RetryWait:   time.Millisecond,
		PollWait:    time.Millisecond,
		MaxPollWait: 2 * time.Millisecond,
		RateLimit:   "1000-S",
	})
	require.NoError(t, err)
	return a
}

func TestNewCloudAdapter_Creator(t *testing.T) {
	_, err := NewCloudAdapter(nil, CloudOptions{})
	assert.Error(t, err)
	_, err = NewCloudAdapter(nil, CloudOptions{Creator: cloudsdk.Creator{UserID: "1", GroupID: "2"}})
	assert.Error(t, err)
}

func TestCloudAdapter_ImageResolvesTexture(t *testing.T) {
	f := &fakeCloud{pollsToDone: 2}
	a := newTestCloudAdapter(t, f)

	in := newInput("ui/button.png", "PNG")
	rec, err := a.SyncOne(t.Context(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, CloudScheme+"2002", rec.ID)
	assert.Equal(t, in.Fingerprint, rec.Fingerprint)
	assert.EqualValues(t, 1, f.creates.Load())
	assert.EqualValues(t, 2, f.polls.Load())
}

func TestCloudAdapter_Audio(t *testing.T) {
	f := &fakeCloud{pollsToDone: 1}
	a := newTestCloudAdapter(t, f)

	rec, err := a.SyncOne(t.Context(), newInput("sfx/hit.ogg", "OGG"), nil)
	require.NoError(t, err)
	assert.Equal(t, CloudScheme+"1001", rec.ID)
}

func TestCloudAdapter_UnsupportedType(t *testing.T) {
	f := &fakeCloud{}
	a := newTestCloudAdapter(t, f)

	_, err := a.SyncOne(t.Context(), newInput("notes.txt", "hi"), nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.False(t, IsFatal(err))
	assert.EqualValues(t, 0, f.creates.Load())
}

func TestCloudAdapter_AuthIsFatal(t *testing.T) {
	f := &fakeCloud{createFail: 100, createCode: http.StatusUnauthorized}
	a := newTestCloudAdapter(t, f)

	_, err := a.SyncOne(t.Context(), newInput("a.png", "X"), nil)
	assert.ErrorIs(t, err, ErrAuth)
	assert.True(t, IsFatal(err))
	assert.EqualValues(t, 1, f.creates.Load())
}

func TestCloudAdapter_TransientRetried(t *testing.T) {
	f := &fakeCloud{createFail: 2, createCode: http.StatusTooManyRequests, pollsToDone: 1}
	a := newTestCloudAdapter(t, f)

	rec, err := a.SyncOne(t.Context(), newInput("a.ogg", "X"), nil)
	require.NoError(t, err)
	assert.Equal(t, CloudScheme+"1001", rec.ID)
	assert.EqualValues(t, 3, f.creates.Load())
}

func TestCloudAdapter_TransientExhausted(t *testing.T) {
	f := &fakeCloud{createFail: 100, createCode: http.StatusInternalServerError}
	a := newTestCloudAdapter(t, f)

	_, err := a.SyncOne(t.Context(), newInput("a.ogg", "X"), nil)
	assert.ErrorIs(t, err, ErrTransient)
	assert.False(t, IsFatal(err))
	assert.EqualValues(t, 3, f.creates.Load())
}

func TestCloudAdapter_OperationRejected(t *testing.T) {
	f := &fakeCloud{pollsToDone: 1, opError: true}
	a := newTestCloudAdapter(t, f)

	_, err := a.SyncOne(t.Context(), newInput("a.ogg", "X"), nil)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestCloudAdapter_OperationNeverDone(t *testing.T) {
	f := &fakeCloud{pollsToDone: 1000}
	a := newTestCloudAdapter(t, f)

	_, err := a.SyncOne(t.Context(), newInput("a.ogg", "X"), nil)
	assert.ErrorIs(t, err, ErrTransient)
	assert.EqualValues(t, 10, f.polls.Load())
}
