package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"init":      KindInit,
		"upload":    KindUpload,
		"download":  KindDownload,
		"terminate": KindTerminate,
		"Init":      KindUnknown,
		"progress":  KindUnknown,
		"":          KindUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseKind(in), "ParseKind(%q)", in)
	}
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "download", KindDownload.String())
}

func TestParseEventKeepsUnknownFields(t *testing.T) {
	line := []byte(`{"event":"download","oid":"ab12","size":5,"action":{"href":"https://x"},"custom":{"a":1}}`)

	ev, err := ParseEvent(line)
	require.NoError(t, err)

	assert.Equal(t, KindDownload, ev.Kind())
	assert.Equal(t, "ab12", ev.Oid)
	assert.Equal(t, int64(5), ev.Size)
	require.NotNil(t, ev.Action)
	assert.Equal(t, "https://x", ev.Action.Href)
	assert.JSONEq(t, `{"a":1}`, string(ev.Fields["custom"]))
}

func TestParseEventRejectsNonObjects(t *testing.T) {
	for _, line := range []string{`{"event":`, `[1,2]`, `"init"`, `not json`, `null`} {
		_, err := ParseEvent([]byte(line))
		assert.Error(t, err, line)
	}
}

func TestParseEventToleratesWrongTypes(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		kind     Kind
		fieldErr bool
	}{
		{"numeric event", `{"event":5}`, KindUnknown, false},
		{"object event", `{"event":{"name":"init"}}`, KindUnknown, false},
		{"numeric oid on unknown event", `{"event":"progress","oid":123}`, KindUnknown, true},
		{"numeric header", `{"event":"download","oid":"ab12","action":{"href":"h","header":{"X":1}}}`, KindDownload, false},
		{"wrong informational types", `{"event":"init","concurrent":"yes","concurrenttransfers":"3","size":"big","remote":7}`, KindInit, false},
		{"numeric path", `{"event":"upload","oid":"x","path":7}`, KindUpload, true},
		{"null oid", `{"event":"download","oid":null}`, KindDownload, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tc.line))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, ev.Kind())
			if tc.fieldErr {
				assert.ErrorIs(t, ev.FieldError(), ErrFieldType)
			} else {
				assert.NoError(t, ev.FieldError())
			}
		})
	}
}

func TestParseEventDropsMalformedAction(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"download","oid":"ab12","action":{"header":{"Authorization":1}}}`))
	require.NoError(t, err)

	assert.Nil(t, ev.Action)
	assert.Equal(t, "ab12", ev.Oid)
	assert.Contains(t, ev.Fields, "action")
}

func TestResponseEncoding(t *testing.T) {
	cases := []struct {
		resp Response
		want string
	}{
		{InitResponse(), `{"event":"init"}`},
		{TerminateResponse(), `{"event":"terminate"}`},
		{DownloadComplete("ab12", "/tmp/out"), `{"event":"complete","oid":"ab12","path":"/tmp/out"}`},
		{UploadComplete("x", 42), `{"event":"complete","oid":"x","size":42}`},
		{UploadComplete("empty", 0), `{"event":"complete","oid":"empty","size":0}`},
		{TransferFailed("x", 404, "not found"), `{"event":"complete","oid":"x","error":{"code":404,"message":"not found"}}`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.resp)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(b))
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "invalid", State(42).String())
}
