package text

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"golang.org/x/tools/godoc/vfs/mapfs"

	"github.com/Lundis/go-gameassets/fetch"
	"github.com/Lundis/go-gameassets/preload"
)

func newQueue(files map[string]string) *preload.Queue {
	f := fetch.NewFS(mapfs.New(files))
	return preload.New(preload.Options{Registry: preload.NewRegistry(Strategies(f)...)})
}

func loadAll(t *testing.T, q *preload.Queue, items ...any) []preload.Event {
	t.Helper()
	done := make(chan struct{})
	var errs []preload.Event
	q.On(preload.EventError, func(ev preload.Event) { errs = append(errs, ev) })
	q.On(preload.EventComplete, func(preload.Event) { close(done) })
	if err := q.EnqueueMany(items); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("queue did not complete")
	}
	q.Wait()
	return errs
}

func TestJSONRoundTrip(t *testing.T) {
	raw := `{"name":"level one","enemies":[1,2,3],"boss":{"hp":100}}`
	q := newQueue(map[string]string{"a.json": raw})
	if errs := loadAll(t, q, "a.json"); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs[0].Err)
	}

	want := map[string]any{
		"name":    "level one",
		"enemies": []any{1.0, 2.0, 3.0},
		"boss":    map[string]any{"hp": 100.0},
	}
	if got := q.GetResult("a.json", false); !reflect.DeepEqual(got, want) {
		t.Fatalf("parsed result = %#v", got)
	}
	if got := q.GetResult("a.json", true); got != raw {
		t.Fatalf("raw result = %#v", got)
	}
}

func TestMalformedJSONIsItemError(t *testing.T) {
	q := newQueue(map[string]string{"bad.json": `{"a":`, "good.txt": "fine"})
	errs := loadAll(t, q, "bad.json", "good.txt")
	if len(errs) != 1 || !errors.Is(errs[0].Err, preload.ErrJSONFormat) {
		t.Fatalf("expected one ErrJSONFormat, got %v", errs)
	}
	if q.GetResult("good.txt", false) != "fine" {
		t.Fatalf("other items should still load")
	}
}

func TestJSONP(t *testing.T) {
	tests := []struct {
		name     string
		callback string
		payload  string
		wantErr  bool
	}{
		{name: "wrapped", callback: "cb", payload: `cb({"a":1});`},
		{name: "whitespace", callback: "cb", payload: "  cb( {\"a\":1} )\n"},
		{name: "no callback", payload: `cb({"a":1})`, wantErr: true},
		{name: "wrong callback", callback: "other", payload: `cb({"a":1})`, wantErr: true},
		{name: "bad json", callback: "cb", payload: `cb({a})`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := formatJSONP(preload.Item{ID: "x", Callback: tc.callback}, []byte(tc.payload))
			if tc.wantErr {
				if !errors.Is(err, preload.ErrJSONFormat) {
					t.Fatalf("expected ErrJSONFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("formatJSONP: %v", err)
			}
			if !reflect.DeepEqual(v, map[string]any{"a": 1.0}) {
				t.Fatalf("unexpected value %#v", v)
			}
		})
	}
}

func TestXMLAndSVG(t *testing.T) {
	doc := `<?xml version="1.0"?><level id="1"><tile x="1">grass</tile><tile x="2"/></level>`
	v, err := formatXML(preload.Item{Type: preload.TypeXML}, []byte(doc))
	if err != nil {
		t.Fatalf("formatXML: %v", err)
	}
	root := v.(*Node)
	if root.Name.Local != "level" || root.AttrValue("id") != "1" || len(root.Children) != 2 {
		t.Fatalf("unexpected tree %+v", root)
	}
	if tile := root.Find("tile"); tile == nil || tile.Text != "grass" {
		t.Fatalf("unexpected first tile %+v", tile)
	}

	if _, err := formatXML(preload.Item{Type: preload.TypeSVG}, []byte(doc)); !errors.Is(err, ErrMalformedXML) {
		t.Fatalf("non svg root should fail, got %v", err)
	}
	if _, err := formatXML(preload.Item{Type: preload.TypeSVG}, []byte(`<svg width="4"></svg>`)); err != nil {
		t.Fatalf("svg: %v", err)
	}
	if _, err := formatXML(preload.Item{Type: preload.TypeXML}, []byte(`<a><b></a>`)); !errors.Is(err, ErrMalformedXML) {
		t.Fatalf("expected ErrMalformedXML, got %v", err)
	}
}

func TestFontCSS(t *testing.T) {
	css := `@font-face { font-family: 'Pixel'; src: url("fonts/pixel.woff2") format("woff2"), url(fonts/pixel.ttf); }`
	v, err := formatFontCSS(preload.Item{}, []byte(css))
	if err != nil {
		t.Fatalf("formatFontCSS: %v", err)
	}
	fc := v.(FontCSS)
	if !reflect.DeepEqual(fc.Families, []string{"Pixel"}) {
		t.Errorf("families = %v", fc.Families)
	}
	if !reflect.DeepEqual(fc.Sources, []string{"fonts/pixel.woff2", "fonts/pixel.ttf"}) {
		t.Errorf("sources = %v", fc.Sources)
	}
}

func TestSpriteSheet(t *testing.T) {
	def := `{"images":["hero.png","https://cdn.test/fx.png"],"frames":{"width":32,"height":32},"animations":{"run":[0,7]}}`
	v, err := formatSpriteSheet(preload.Item{ID: "hero", Src: "sprites/hero.json"}, []byte(def))
	if err != nil {
		t.Fatalf("formatSpriteSheet: %v", err)
	}
	sheet := v.(*SpriteSheet)
	if !reflect.DeepEqual(sheet.Images, []string{"sprites/hero.png", "https://cdn.test/fx.png"}) {
		t.Errorf("images = %v", sheet.Images)
	}
	if _, ok := sheet.Animations["run"]; !ok {
		t.Errorf("animations not decoded")
	}

	v, err = formatSpriteSheet(preload.Item{Src: "https://cdn.test/s/hero.json"}, []byte(`{"images":["hero.png"]}`))
	if err != nil {
		t.Fatalf("formatSpriteSheet: %v", err)
	}
	if got := v.(*SpriteSheet).Images[0]; got != "https://cdn.test/s/hero.png" {
		t.Errorf("remote image = %s", got)
	}

	if _, err := formatSpriteSheet(preload.Item{}, []byte(`{"frames":{}}`)); !errors.Is(err, preload.ErrJSONFormat) {
		t.Fatalf("expected ErrJSONFormat, got %v", err)
	}
}

func TestScriptsThroughQueue(t *testing.T) {
	f := fetch.NewFS(mapfs.New(map[string]string{"a.js": "var a = 1", "b.js": "var b = 2"}))
	var order []string
	q := preload.New(preload.Options{
		MaxConnections: 2,
		Registry:       preload.NewRegistry(Strategies(f)...),
		OnScript: func(it preload.Item, res preload.Result) {
			order = append(order, res.Value.(Script).Code)
		},
	})
	loadAll(t, q, "a.js", "b.js")
	if !reflect.DeepEqual(order, []string{"var a = 1", "var b = 2"}) {
		t.Fatalf("scripts ran as %v", order)
	}
}

func TestLoaderHonoursCancel(t *testing.T) {
	block := fetch.Func(func(ctx context.Context, _ fetch.Request) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := New("text", block, formatText, preload.TypeText)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.NewLoader(preload.Item{Src: "a.txt"}, false).Load(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
