package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeEngine struct {
	name  string
	html  string
	err   error
	calls int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(_ context.Context, _ *FetchRequest) (*FetchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{HTML: f.html, EngineName: f.name}, nil
}

func hasResults(r *FetchResult) bool {
	return strings.Contains(r.HTML, "gs-title")
}

const searchURL = "https://telegramsearchengine.com/?q=go"

func TestDispatch_FirstAcceptedWins(t *testing.T) {
	httpEng := &fakeEngine{name: "http", html: `<div class="gs-title"></div>`}
	rodEng := &fakeEngine{name: "rod", html: "rendered"}
	d := NewDispatcher([]Engine{httpEng, rodEng}, hasResults, NewDomainMemory(time.Hour))

	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: searchURL})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.EngineName != "http" {
		t.Errorf("EngineName = %q, want http", res.EngineName)
	}
	if rodEng.calls != 0 {
		t.Errorf("rod called %d times, want 0", rodEng.calls)
	}
}

func TestDispatch_RejectedPageEscalates(t *testing.T) {
	httpEng := &fakeEngine{name: "http", html: "<html>shell only</html>"}
	rodEng := &fakeEngine{name: "rod", html: "<html>no results either</html>"}
	mem := NewDomainMemory(time.Hour)
	d := NewDispatcher([]Engine{httpEng, rodEng}, hasResults, mem)

	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: searchURL})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	// The final engine's page is returned even though it has no results.
	if res.EngineName != "rod" {
		t.Errorf("EngineName = %q, want rod", res.EngineName)
	}
	if got := mem.Get("telegramsearchengine.com"); got != "rod" {
		t.Errorf("memory = %q, want rod", got)
	}
}

func TestDispatch_MemorySkipsFailingEngine(t *testing.T) {
	httpEng := &fakeEngine{name: "http", html: "<html></html>"}
	rodEng := &fakeEngine{name: "rod", html: "rendered"}
	mem := NewDomainMemory(time.Hour)
	mem.Set("telegramsearchengine.com", "rod")
	d := NewDispatcher([]Engine{httpEng, rodEng}, hasResults, mem)

	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: searchURL})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.EngineName != "rod" {
		t.Errorf("EngineName = %q, want rod", res.EngineName)
	}
	if httpEng.calls != 0 {
		t.Errorf("http called %d times, want 0 after memory hit", httpEng.calls)
	}
}

func TestDispatch_AllFailReturnsLastError(t *testing.T) {
	errRod := errors.New("browser exploded")
	d := NewDispatcher([]Engine{
		&fakeEngine{name: "http", err: errors.New("refused")},
		&fakeEngine{name: "rod", err: errRod},
	}, hasResults, nil)

	_, err := d.Dispatch(context.Background(), &FetchRequest{URL: searchURL})
	if !errors.Is(err, errRod) {
		t.Errorf("err = %v, want %v", err, errRod)
	}
}

func TestDispatch_StopsOnCanceledContext(t *testing.T) {
	eng := &fakeEngine{name: "rod", html: "x"}
	d := NewDispatcher([]Engine{eng}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Dispatch(ctx, &FetchRequest{URL: searchURL}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if eng.calls != 0 {
		t.Errorf("engine called %d times on canceled context", eng.calls)
	}
}

func TestDomainMemory_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := NewDomainMemory(time.Hour)
	mem.now = func() time.Time { return now }

	mem.Set("example.com", "http")
	if got := mem.Get("example.com"); got != "http" {
		t.Fatalf("Get = %q, want http", got)
	}

	now = now.Add(2 * time.Hour)
	if got := mem.Get("example.com"); got != "" {
		t.Errorf("Get after expiry = %q, want empty", got)
	}
}

func TestDomainMemory_NilIsSafe(t *testing.T) {
	var mem *DomainMemory
	mem.Set("example.com", "rod")
	mem.Delete("example.com")
	if got := mem.Get("example.com"); got != "" {
		t.Errorf("Get on nil memory = %q", got)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://telegramsearchengine.com/?q=go", "telegramsearchengine.com"},
		{"https://www.telegramsearchengine.com/?q=go", "telegramsearchengine.com"},
		{"https://search.example.co.uk/", "example.co.uk"},
		{"http://127.0.0.1:8080/?q=go", "127.0.0.1"},
		{"http://localhost/", "localhost"},
	}
	for _, tt := range tests {
		if got := extractDomain(tt.url); got != tt.want {
			t.Errorf("extractDomain(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDispatch_MemorySharedAcrossSubdomains(t *testing.T) {
	mem := NewDomainMemory(time.Hour)
	d := NewDispatcher([]Engine{
		&fakeEngine{name: "http", html: "<html></html>"},
		&fakeEngine{name: "rod", html: "rendered"},
	}, hasResults, mem)

	if _, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://www.telegramsearchengine.com/?q=go"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := mem.Get("telegramsearchengine.com"); got != "rod" {
		t.Errorf("memory = %q, want rod", got)
	}
}
