package bot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow/types"

	"github.com/mesnalabs/mesna-bot/internal/ai"
	"github.com/mesnalabs/mesna-bot/internal/menu"
	"github.com/mesnalabs/mesna-bot/internal/order"
	"github.com/mesnalabs/mesna-bot/internal/profile"
	"github.com/mesnalabs/mesna-bot/internal/prompt"
	"github.com/mesnalabs/mesna-bot/internal/session"
	"github.com/mesnalabs/mesna-bot/internal/settings"
	"github.com/mesnalabs/mesna-bot/internal/sink"
	"github.com/mesnalabs/mesna-bot/internal/wa"
)

// apologyReply is sent when the model call fails. The customer always gets
// an answer; the failure stays in the logs.
const apologyReply = "Maaf kijiyega, system mein thora masla aa gaya hai. Kya aap phir se koshish kar sakte hain?"

// postOrderHistoryTurns is how much history survives a completed order.
const postOrderHistoryTurns = 10

// Sender is the outbound side of the customer transport.
type Sender interface {
	SendText(ctx context.Context, to types.JID, text string) error
	SendImage(ctx context.Context, to types.JID, path string) error
}

// MenuSource resolves the menu from the remote spreadsheet. A nil menu with
// nil error means the source has no menu and the local one should be used.
type MenuSource interface {
	Menu(ctx context.Context) (menu.Menu, error)
}

// Handler runs the per-message pipeline: session and profile lookup, prompt
// build, model call, order extraction, sink fan-out, reply. One handler
// serves all customers; per-customer handling is serialized by the in-flight
// set while different customers proceed concurrently.
type Handler struct {
	sessions   *session.Store
	profiles   *profile.Store
	provider   ai.Provider
	menus      *menu.Holder
	menuSource MenuSource
	settings   *settings.Store
	dispatcher *sink.Dispatcher
	sender     Sender
	mediaDir   string
	logger     *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(
	sessions *session.Store,
	profiles *profile.Store,
	provider ai.Provider,
	menus *menu.Holder,
	menuSource MenuSource,
	st *settings.Store,
	dispatcher *sink.Dispatcher,
	sender Sender,
	mediaDir string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sessions:   sessions,
		profiles:   profiles,
		provider:   provider,
		menus:      menus,
		menuSource: menuSource,
		settings:   st,
		dispatcher: dispatcher,
		sender:     sender,
		mediaDir:   mediaDir,
		logger:     logger,
		inflight:   make(map[string]struct{}),
	}
}

// HandleAsync processes one inbound message on its own goroutine so slow
// model calls for one customer never block another customer's messages.
func (h *Handler) HandleAsync(msg wa.Incoming) {
	go h.HandleMessage(context.Background(), msg)
}

// HandleMessage runs the full pipeline for one inbound message. A second
// message from the same customer arriving mid-flight is dropped — never
// processed concurrently — so session and profile state for that customer
// stays single-writer and an order cannot be double-dispatched.
func (h *Handler) HandleMessage(ctx context.Context, msg wa.Incoming) {
	if !h.acquire(msg.CustomerID) {
		h.logger.Debug("message dropped, customer already in flight", "customer", msg.CustomerID)
		return
	}
	defer h.release(msg.CustomerID)

	h.logger.Info("message received", "customer", msg.CustomerID, "len", len(msg.Text))

	st := h.settings.Current()
	prof := h.profiles.Get(msg.CustomerID)
	history := h.sessions.History(msg.CustomerID)

	system := prompt.Build(prompt.Params{
		RestaurantName:   st.RestaurantName,
		MinDeliveryOrder: st.MinDeliveryOrder,
		DeliveryCharges:  st.DeliveryCharges,
		Profile:          prof,
		PhoneFallback:    msg.Phone,
		Menu:             h.menus.Current(),
	})

	reply, err := h.provider.Chat(ctx, system, history, msg.Text)
	if err != nil {
		h.logger.Error("model call failed", "customer", msg.CustomerID, "error", err)
		h.send(ctx, msg.Chat, apologyReply)
		return
	}

	// History never carries the order tag, or the model would keep seeing a
	// stale confirmation and re-confirm old orders.
	h.sessions.Append(msg.CustomerID, session.Turn{Role: session.RoleCustomer, Text: msg.Text})
	h.sessions.Append(msg.CustomerID, session.Turn{Role: session.RoleAssistant, Text: order.SanitizeForHistory(reply)})

	visible, extracted := order.Extract(reply)
	if extracted != nil {
		h.dispatcher.Dispatch(ctx, msg.CustomerID, msg.Phone, *extracted)
		// Keep enough context for post-order chatter, drop the rest.
		h.sessions.TrimToLast(msg.CustomerID, postOrderHistoryTurns)
	}

	h.send(ctx, msg.Chat, visible)
	h.maybeSendMenuImages(ctx, msg, reply, visible)
}

// RefreshMenu resolves the current menu: the spreadsheet Menu tab when
// reachable, the locally configured menu otherwise. Called once at startup
// and again on explicit dashboard trigger, never inside the message path.
func (h *Handler) RefreshMenu(ctx context.Context) {
	if h.menuSource != nil {
		m, err := h.menuSource.Menu(ctx)
		if err != nil {
			h.logger.Warn("remote menu fetch failed", "error", err)
		} else if m != nil {
			h.menus.Set(m)
			h.logger.Info("menu loaded from spreadsheet", "categories", len(m))
			return
		}
	}
	h.menus.Set(h.settings.Current().Menu)
	h.logger.Info("using locally configured menu")
}

func (h *Handler) acquire(customerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inflight[customerID]; busy {
		return false
	}
	h.inflight[customerID] = struct{}{}
	return true
}

func (h *Handler) release(customerID string) {
	h.mu.Lock()
	delete(h.inflight, customerID)
	h.mu.Unlock()
}

func (h *Handler) send(ctx context.Context, to types.JID, text string) {
	if err := h.sender.SendText(ctx, to, text); err != nil {
		h.logger.Error("send failed", "chat", to.String(), "error", err)
	}
}

var mediaKeywords = []string{"pic", "photo", "tasveer", "picture"}

// maybeSendMenuImages follows up the text reply with the menu images when the
// customer asked for a picture, or when the reply talks about the menu
// outside a confirmation exchange.
func (h *Handler) maybeSendMenuImages(ctx context.Context, msg wa.Incoming, rawReply, visible string) {
	lowerBody := strings.ToLower(msg.Text)
	asked := false
	for _, k := range mediaKeywords {
		if strings.Contains(lowerBody, k) {
			asked = true
			break
		}
	}
	if !asked && !(strings.Contains(strings.ToLower(visible), "menu") && !strings.Contains(rawReply, "confirm")) {
		return
	}

	entries, err := os.ReadDir(h.mediaDir)
	if err != nil {
		h.logger.Warn("media dir unreadable", "dir", h.mediaDir, "error", err)
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "menu") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".jpg" && ext != ".png" {
			continue
		}
		path := filepath.Join(h.mediaDir, name)
		if err := h.sender.SendImage(ctx, msg.Chat, path); err != nil {
			h.logger.Warn("menu image send failed", "file", name, "error", err)
			continue
		}
		h.logger.Info("menu image sent", "file", name, "customer", msg.CustomerID)
	}
}
