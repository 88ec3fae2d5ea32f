package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/types"

	"github.com/mesnalabs/mesna-bot/internal/backup"
	"github.com/mesnalabs/mesna-bot/internal/menu"
	"github.com/mesnalabs/mesna-bot/internal/order"
	"github.com/mesnalabs/mesna-bot/internal/profile"
	"github.com/mesnalabs/mesna-bot/internal/session"
	"github.com/mesnalabs/mesna-bot/internal/settings"
	"github.com/mesnalabs/mesna-bot/internal/sink"
	"github.com/mesnalabs/mesna-bot/internal/wa"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	started chan struct{}
	proceed chan struct{}
}

func (f *fakeProvider) Chat(ctx context.Context, system string, history []session.Turn, message string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.proceed != nil {
		<-f.proceed
	}
	return f.reply, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSender struct {
	mu     sync.Mutex
	texts  []string
	images []string
}

func (f *fakeSender) SendText(ctx context.Context, to types.JID, text string) error {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) SendImage(ctx context.Context, to types.JID, path string) error {
	f.mu.Lock()
	f.images = append(f.images, path)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

type noopLedger struct{ err error }

func (l noopLedger) AppendOrder(ctx context.Context, customerID string, o order.Order) error {
	return l.err
}

type testEnv struct {
	handler  *Handler
	provider *fakeProvider
	sender   *fakeSender
	sessions *session.Store
	profiles *profile.Store
	backups  *backup.Store
}

func newTestEnv(t *testing.T, provider *fakeProvider) *testEnv {
	t.Helper()
	dir := t.TempDir()
	sessions := session.NewStore()
	profiles := profile.Open(filepath.Join(dir, "profiles.json"), discardLogger())
	st := settings.Open(filepath.Join(dir, "settings.json"), discardLogger())
	backups := backup.NewStore(filepath.Join(dir, "orders.json"), discardLogger())
	dispatcher := sink.NewDispatcher(profiles, st, backups, noopLedger{}, nil, nil, discardLogger())
	sender := &fakeSender{}
	menus := menu.NewHolder(menu.Menu{"Burgers": {{Name: "Zinger", Price: "450"}}})

	h := New(sessions, profiles, provider, menus, nil, st, dispatcher, sender, dir, discardLogger())
	return &testEnv{
		handler:  h,
		provider: provider,
		sender:   sender,
		sessions: sessions,
		profiles: profiles,
		backups:  backups,
	}
}

func incoming(customerID, text string) wa.Incoming {
	return wa.Incoming{
		CustomerID: customerID,
		Phone:      "923001234567",
		Text:       text,
		Chat:       types.NewJID("923001234567", types.DefaultUserServer),
	}
}

func TestHandleMessage_PlainReply(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{reply: "Assalamu Alaikum! Kya order karna chahen ge?"})

	env.handler.HandleMessage(context.Background(), incoming("u1", "salam"))

	texts := env.sender.sentTexts()
	if len(texts) != 1 || texts[0] != "Assalamu Alaikum! Kya order karna chahen ge?" {
		t.Fatalf("unexpected sends: %v", texts)
	}
	if got := env.sessions.Len("u1"); got != 2 {
		t.Errorf("expected 2 history turns, got %d", got)
	}
	if len(env.backups.List()) != 0 {
		t.Error("no order should have been dispatched")
	}
}

func TestHandleMessage_OrderExtracted(t *testing.T) {
	reply := `Shukriya! Order confirm. ORDER_DATA: {"name":"Ali","phone":"0300","address":"X St","items":"2 Zinger","total":"1200"}`
	env := newTestEnv(t, &fakeProvider{reply: reply})

	// Pre-existing conversation so the post-order trim has something to cut.
	for i := 0; i < 14; i++ {
		env.sessions.Append("u1", session.Turn{Role: session.RoleCustomer, Text: fmt.Sprintf("turn-%d", i)})
	}

	env.handler.HandleMessage(context.Background(), incoming("u1", "ji confirm"))

	texts := env.sender.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("expected 1 send, got %d", len(texts))
	}
	if strings.Contains(texts[0], "ORDER_DATA") {
		t.Errorf("customer reply still contains tag: %q", texts[0])
	}
	if texts[0] != "Shukriya! Order confirm." {
		t.Errorf("unexpected cleaned reply: %q", texts[0])
	}

	if p := env.profiles.Get("u1"); p.Name != "Ali" || p.LastOrder != "2 Zinger" {
		t.Errorf("expected profile merged from order, got %+v", p)
	}
	if records := env.backups.List(); len(records) != 1 || records[0].Total != "1200" {
		t.Errorf("expected one backup record, got %+v", records)
	}

	if got := env.sessions.Len("u1"); got != 10 {
		t.Errorf("expected session trimmed to 10 turns, got %d", got)
	}
	for _, turn := range env.sessions.History("u1") {
		if strings.Contains(turn.Text, "ORDER_DATA") {
			t.Errorf("history contains the order tag: %q", turn.Text)
		}
	}
}

func TestHandleMessage_ProviderFailure(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{err: errors.New("provider down")})

	env.handler.HandleMessage(context.Background(), incoming("u1", "salam"))

	texts := env.sender.sentTexts()
	if len(texts) != 1 || texts[0] != apologyReply {
		t.Fatalf("expected apology reply, got %v", texts)
	}
	if got := env.sessions.Len("u1"); got != 0 {
		t.Errorf("failed call must not pollute history, got %d turns", got)
	}
}

func TestHandleMessage_SameCustomerSerialized(t *testing.T) {
	provider := &fakeProvider{
		reply:   "ok",
		started: make(chan struct{}, 1),
		proceed: make(chan struct{}),
	}
	env := newTestEnv(t, provider)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		env.handler.HandleMessage(context.Background(), incoming("u1", "first"))
	}()
	<-provider.started

	// Second message while the first is mid-flight: dropped, no model call.
	env.handler.HandleMessage(context.Background(), incoming("u1", "second"))
	if got := provider.callCount(); got != 1 {
		t.Fatalf("expected 1 provider call, got %d", got)
	}

	close(provider.proceed)
	wg.Wait()

	if texts := env.sender.sentTexts(); len(texts) != 1 {
		t.Errorf("expected exactly one reply, got %v", texts)
	}

	// After the first completes the customer is admitted again.
	env.handler.HandleMessage(context.Background(), incoming("u1", "third"))
	if got := provider.callCount(); got != 2 {
		t.Errorf("expected customer admitted after release, got %d calls", got)
	}
}

func TestHandleMessage_DifferentCustomersConcurrent(t *testing.T) {
	provider := &fakeProvider{
		reply:   "ok",
		started: make(chan struct{}, 2),
		proceed: make(chan struct{}),
	}
	env := newTestEnv(t, provider)

	var wg sync.WaitGroup
	for _, id := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			env.handler.HandleMessage(context.Background(), incoming(id, "hi"))
		}(id)
	}

	// Both customers must reach the provider while neither has finished.
	for i := 0; i < 2; i++ {
		select {
		case <-provider.started:
		case <-time.After(2 * time.Second):
			t.Fatal("customers blocked each other")
		}
	}
	close(provider.proceed)
	wg.Wait()
}

func TestHandleMessage_ReleasedAfterProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	env := newTestEnv(t, provider)

	env.handler.HandleMessage(context.Background(), incoming("u1", "one"))
	env.handler.HandleMessage(context.Background(), incoming("u1", "two"))

	if got := provider.callCount(); got != 2 {
		t.Errorf("expected in-flight marker released on error path, got %d calls", got)
	}
}
