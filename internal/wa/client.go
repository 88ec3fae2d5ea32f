package wa

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// Incoming is one inbound customer text message. Group and status messages
// never reach the handler.
type Incoming struct {
	// CustomerID is the stable conversation key (the chat JID string).
	CustomerID string
	// Phone is the sender's phone number, used as the profile phone fallback.
	Phone string
	Text  string
	Chat  types.JID
}

// Client wraps the whatsmeow web client: device persistence in sqlite, QR
// pairing, inbound dispatch, and outbound text/image sends.
type Client struct {
	wm     *whatsmeow.Client
	logger *slog.Logger

	onMessage   func(Incoming)
	onQR        func(code string)
	onPaired    func()
	onLoggedOut func()

	mu     sync.Mutex
	lastQR string
	paired bool
}

func NewClient(ctx context.Context, dbPath string, logger *slog.Logger) (*Client, error) {
	container, err := sqlstore.New(ctx, "sqlite3", "file:"+dbPath+"?_foreign_keys=on", waLog.Stdout("Database", "ERROR", true))
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	c := &Client{
		wm:     whatsmeow.NewClient(device, waLog.Stdout("Client", "ERROR", true)),
		logger: logger,
	}
	c.wm.AddEventHandler(c.handleEvent)
	return c, nil
}

// OnMessage registers the inbound text handler. Must be called before Connect.
func (c *Client) OnMessage(fn func(Incoming)) { c.onMessage = fn }

// OnQR is invoked with each fresh pairing code, and again by the watchdog
// until pairing completes.
func (c *Client) OnQR(fn func(code string)) { c.onQR = fn }

// OnPaired is invoked once the client is authenticated and connected.
func (c *Client) OnPaired(fn func()) { c.onPaired = fn }

// OnLoggedOut is invoked when the device is unpaired remotely. The expected
// reaction is a deliberate process exit so the supervisor restarts into a
// fresh QR cycle.
func (c *Client) OnLoggedOut(fn func()) { c.onLoggedOut = fn }

// Connect starts the transport. When no device is paired yet it runs the QR
// pairing flow, printing each code to the terminal and forwarding it to the
// dashboard; a one-minute watchdog re-pushes the latest code to observers
// that connect mid-pairing.
func (c *Client) Connect(ctx context.Context) error {
	if c.wm.Store.ID == nil {
		qrChan, err := c.wm.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}
		if err := c.wm.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}

		go c.qrWatchdog(ctx)
		go func() {
			for evt := range qrChan {
				switch evt.Event {
				case "code":
					c.mu.Lock()
					c.lastQR = evt.Code
					c.mu.Unlock()
					qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
					if c.onQR != nil {
						c.onQR(evt.Code)
					}
				case "success":
					c.logger.Info("pairing complete")
				default:
					c.logger.Warn("pairing event", "event", evt.Event)
				}
			}
		}()
		return nil
	}
	return c.wm.Connect()
}

func (c *Client) qrWatchdog(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			paired, code := c.paired, c.lastQR
			c.mu.Unlock()
			if paired {
				return
			}
			if code != "" && c.onQR != nil {
				c.logger.Info("re-pushing pairing code to dashboard")
				c.onQR(code)
			}
		}
	}
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		c.mu.Lock()
		c.paired = true
		c.mu.Unlock()
		c.logger.Info("whatsapp connected")
		if c.onPaired != nil {
			c.onPaired()
		}
	case *events.LoggedOut:
		c.logger.Error("device logged out")
		if c.onLoggedOut != nil {
			c.onLoggedOut()
		}
	case *events.Message:
		c.dispatchMessage(v)
	}
}

func (c *Client) dispatchMessage(v *events.Message) {
	if c.onMessage == nil || v.Info.IsFromMe || v.Info.IsGroup {
		return
	}
	if v.Info.Chat == types.StatusBroadcastJID {
		return
	}

	text := v.Message.GetConversation()
	if text == "" && v.Message.GetExtendedTextMessage() != nil {
		text = v.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		return
	}

	c.onMessage(Incoming{
		CustomerID: v.Info.Chat.ToNonAD().String(),
		Phone:      v.Info.Sender.User,
		Text:       text,
		Chat:       v.Info.Chat,
	})
}

// SendText sends a plain text message to a chat.
func (c *Client) SendText(ctx context.Context, to types.JID, text string) error {
	_, err := c.wm.SendMessage(ctx, to, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendToPhone sends a text message to a bare phone number.
func (c *Client) SendToPhone(ctx context.Context, phone, text string) error {
	return c.SendText(ctx, types.NewJID(phone, types.DefaultUserServer), text)
}

// SendImage uploads and sends an image file to a chat.
func (c *Client) SendImage(ctx context.Context, to types.JID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	up, err := c.wm.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}

	mime := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		mime = "image/png"
	}

	_, err = c.wm.SendMessage(ctx, to, &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(mime),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		},
	})
	if err != nil {
		return fmt.Errorf("send image: %w", err)
	}
	return nil
}

// Logout unpairs the device. The caller is expected to exit afterwards.
func (c *Client) Logout(ctx context.Context) error {
	return c.wm.Logout(ctx)
}

// Disconnect closes the transport connection.
func (c *Client) Disconnect() {
	c.wm.Disconnect()
}

// Paired reports whether the client is authenticated.
func (c *Client) Paired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paired
}
