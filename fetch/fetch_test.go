package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/tools/godoc/vfs/mapfs"

	"github.com/Lundis/go-gameassets/preload"
)

func TestHTTPFetch(t *testing.T) {
	payload := strings.Repeat("x", 3*chunkSize+10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/data.bin" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("v") != "2" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("X-Token") != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(payload))
	}))
	defer server.Close()

	h, err := NewHTTP(HTTPOptions{BaseURL: server.URL + "/assets/"})
	if err != nil {
		t.Fatalf("NewHTTP() error = %v", err)
	}
	defer h.Close()

	var calls int
	var last int64
	req := Request{
		Item: preload.Item{
			Src:     "data.bin",
			Values:  map[string]string{"v": "2"},
			Headers: map[string]string{"X-Token": "abc"},
		},
		Progress: func(loaded, total int64) {
			calls++
			last = loaded
		},
	}
	data, err := h.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != payload {
		t.Errorf("unexpected payload of %d bytes", len(data))
	}
	if calls < 2 || last != int64(len(payload)) {
		t.Errorf("progress calls = %d, last = %d", calls, last)
	}
}

func TestHTTPPostValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer server.Close()

	h, err := NewHTTP(HTTPOptions{})
	if err != nil {
		t.Fatalf("NewHTTP() error = %v", err)
	}
	data, err := h.Fetch(context.Background(), Request{Item: preload.Item{
		Src:    server.URL + "/save",
		Method: http.MethodPost,
		Values: map[string]string{"level": "3"},
	}})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "level=3" {
		t.Errorf("body = %q, want level=3", data)
	}
}

func TestHTTPNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h, _ := NewHTTP(HTTPOptions{})
	_, err := h.Fetch(context.Background(), Request{Item: preload.Item{Src: server.URL + "/missing.png"}})
	if !errors.Is(err, preload.ErrFileLoad) {
		t.Fatalf("expected ErrFileLoad, got %v", err)
	}
	if !strings.Contains(err.Error(), "server returned 404") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestHTTPCanceled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(block)

	h, _ := NewHTTP(HTTPOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Fetch(ctx, Request{Item: preload.Item{Src: server.URL + "/slow"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHTTPRelativeWithoutBase(t *testing.T) {
	h, _ := NewHTTP(HTTPOptions{})
	_, err := h.Fetch(context.Background(), Request{Item: preload.Item{Src: "a.json"}})
	if !errors.Is(err, preload.ErrFileLoad) {
		t.Fatalf("expected ErrFileLoad, got %v", err)
	}
}

func TestFSFetch(t *testing.T) {
	fs := NewFS(mapfs.New(map[string]string{
		"sounds/hit.wav": "RIFF",
		"a.json":         `{"a":1}`,
	}))
	var total int64
	data, err := fs.Fetch(context.Background(), Request{
		Item:     preload.Item{Src: "./sounds/hit.wav?cache=1"},
		Progress: func(_, t int64) { total = t },
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "RIFF" || total != 4 {
		t.Errorf("data = %q total = %d", data, total)
	}

	if _, err := fs.Fetch(context.Background(), Request{Item: preload.Item{Src: "../../a.json"}}); err != nil {
		t.Errorf("escaping paths should resolve inside the filesystem: %v", err)
	}
	_, err = fs.Fetch(context.Background(), Request{Item: preload.Item{Src: "missing.txt"}})
	if !errors.Is(err, preload.ErrFileLoad) {
		t.Fatalf("expected ErrFileLoad, got %v", err)
	}
}

func TestRouter(t *testing.T) {
	local := Func(func(context.Context, Request) ([]byte, error) { return []byte("local"), nil })
	network := Func(func(context.Context, Request) ([]byte, error) { return []byte("network"), nil })
	r := Router{Network: network, Local: local}

	tests := []struct {
		src    string
		prefer bool
		want   string
	}{
		{src: "a.png", want: "local"},
		{src: "a.png", prefer: true, want: "network"},
		{src: "https://cdn.test/a.png", want: "network"},
		{src: "//cdn.test/a.png", want: "network"},
	}
	for _, tc := range tests {
		got, err := r.Fetch(context.Background(), Request{Item: preload.Item{Src: tc.src}, PreferNetwork: tc.prefer})
		if err != nil {
			t.Fatalf("%s: %v", tc.src, err)
		}
		if string(got) != tc.want {
			t.Errorf("%s prefer=%v: got %s, want %s", tc.src, tc.prefer, got, tc.want)
		}
	}

	_, err := Router{Local: local}.Fetch(context.Background(), Request{Item: preload.Item{Src: "http://x.test/a"}})
	if !errors.Is(err, ErrNoFetcher) {
		t.Fatalf("expected ErrNoFetcher, got %v", err)
	}
}
