package delivery

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/klauspost/compress/gzip"
)

const settingsBody = `{"integrations":{"Example":{"apiKey":"k"}},"plan":{"track":{}}}`

func fetchSettings(t *testing.T, sess *fakeSession) (*Settings, error) {
	t.Helper()
	p := newTestPipeline(t, sess, nil)
	var (
		got *Settings
		err error
	)
	task, terr := p.FetchSettings(context.Background(), func(s *Settings, e error) { got, err = s, e })
	if terr != nil {
		t.Fatalf("fetch settings: %v", terr)
	}
	task.Resume()
	return got, err
}

func TestFetchSettingsDecodes(t *testing.T) {
	sess := &fakeSession{status: 200, body: []byte(settingsBody)}
	s, err := fetchSettings(t, sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.Integrations["Example"]; !ok {
		t.Fatalf("integrations missing: %+v", s)
	}
	if want := "https://cdn.example.com/projects/wk_test/settings"; sess.lastReq.URL.String() != want {
		t.Fatalf("url = %s, want %s", sess.lastReq.URL, want)
	}
}

func TestFetchSettingsInflatesGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(settingsBody)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	s, err := fetchSettings(t, &fakeSession{status: 200, body: buf.Bytes()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.Integrations["Example"]; !ok {
		t.Fatalf("integrations missing after inflate: %+v", s)
	}
}

func TestFetchSettingsStatusFailure(t *testing.T) {
	s, err := fetchSettings(t, &fakeSession{status: 404, body: []byte("not found")})
	if s != nil || err == nil {
		t.Fatalf("expected failure, got %v %v", s, err)
	}
	if errors.Is(err, ErrSettingsDecode) {
		t.Fatalf("status failure must not be a decode error: %v", err)
	}
}

func TestFetchSettingsDecodeFailure(t *testing.T) {
	s, err := fetchSettings(t, &fakeSession{status: 200, body: []byte("<html>")})
	if s != nil || !errors.Is(err, ErrSettingsDecode) {
		t.Fatalf("expected ErrSettingsDecode, got %v %v", s, err)
	}
}

func TestFetchSettingsTransportFailure(t *testing.T) {
	s, err := fetchSettings(t, &fakeSession{err: errors.New("timeout")})
	if s != nil || err == nil {
		t.Fatalf("expected failure, got %v %v", s, err)
	}
	if errors.Is(err, ErrSettingsDecode) {
		t.Fatalf("transport failure must not be a decode error: %v", err)
	}
}
