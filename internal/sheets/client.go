package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/mesnalabs/mesna-bot/internal/menu"
	"github.com/mesnalabs/mesna-bot/internal/order"
)

const menuTab = "Menu"

// DefaultOrderHeader is the header row written to a fresh orders worksheet.
// Deployments that predate the Status column can keep their existing header —
// rows are appended positionally, not by name.
var DefaultOrderHeader = []string{"Timestamp", "Name", "Phone", "Address", "Order", "Status"}

// Client wraps the Google Sheets API for the two documents the bot touches:
// the orders worksheet (first sheet) and the optional "Menu" tab.
type Client struct {
	svc    *sheetsv4.Service
	logger *slog.Logger
	header []string

	mu            sync.RWMutex
	spreadsheetID string
}

// New builds a client from service-account credentials JSON.
func New(ctx context.Context, credsJSON []byte, spreadsheetID string, logger *slog.Logger) (*Client, error) {
	svc, err := sheetsv4.NewService(ctx,
		option.WithCredentialsJSON(credsJSON),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, logger: logger, header: DefaultOrderHeader, spreadsheetID: spreadsheetID}, nil
}

// SetSpreadsheetID switches the active spreadsheet. Called when the dashboard
// saves a new sheet ID.
func (c *Client) SetSpreadsheetID(id string) {
	c.mu.Lock()
	c.spreadsheetID = id
	c.mu.Unlock()
}

func (c *Client) sheetID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spreadsheetID
}

// Menu reads the "Menu" tab (Category/Item/Price columns, header in row 1).
// Returns nil without error when the tab is absent so the caller can fall
// back to the locally configured menu.
func (c *Client) Menu(ctx context.Context) (menu.Menu, error) {
	id := c.sheetID()
	if id == "" {
		return nil, nil
	}

	resp, err := c.svc.Spreadsheets.Values.Get(id, menuTab+"!A2:C").Context(ctx).Do()
	if err != nil {
		// Most commonly "Unable to parse range" — the tab does not exist.
		c.logger.Warn("menu tab not readable", "error", err)
		return nil, nil
	}

	m := make(menu.Menu)
	for _, row := range resp.Values {
		if len(row) < 3 {
			continue
		}
		category := fmt.Sprint(row[0])
		item := fmt.Sprint(row[1])
		price := fmt.Sprint(row[2])
		if category == "" || item == "" || price == "" {
			continue
		}
		m[category] = append(m[category], menu.Item{Name: item, Price: price})
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

// AppendOrder appends one order row to the first worksheet, creating the
// header row first when the sheet is still blank. Single attempt, no retry.
func (c *Client) AppendOrder(ctx context.Context, customerID string, o order.Order) error {
	id := c.sheetID()
	if id == "" {
		return fmt.Errorf("no spreadsheet configured")
	}

	if err := c.ensureHeader(ctx, id); err != nil {
		return err
	}

	row := []interface{}{
		time.Now().Format("2006-01-02 15:04:05"),
		o.Name,
		o.Phone,
		o.Address,
		o.Items,
		"Pending",
	}
	_, err := c.svc.Spreadsheets.Values.
		Append(id, "A1", &sheetsv4.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append order row: %w", err)
	}
	return nil
}

// UpdateMenu rewrites the "Menu" tab from m, creating the tab if needed.
func (c *Client) UpdateMenu(ctx context.Context, m menu.Menu) error {
	id := c.sheetID()
	if id == "" {
		return fmt.Errorf("no spreadsheet configured")
	}

	if err := c.ensureMenuTab(ctx, id); err != nil {
		return err
	}

	if _, err := c.svc.Spreadsheets.Values.
		Clear(id, menuTab+"!A1:C", &sheetsv4.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear menu tab: %w", err)
	}

	rows := [][]interface{}{{"Category", "Item", "Price"}}
	for _, category := range sortedCategories(m) {
		for _, item := range m[category] {
			rows = append(rows, []interface{}{category, item.Name, item.Price})
		}
	}

	_, err := c.svc.Spreadsheets.Values.
		Update(id, menuTab+"!A1", &sheetsv4.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write menu rows: %w", err)
	}
	return nil
}

func (c *Client) ensureHeader(ctx context.Context, id string) error {
	resp, err := c.svc.Spreadsheets.Values.Get(id, "A1:F1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header row: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	header := make([]interface{}, len(c.header))
	for i, h := range c.header {
		header[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.
		Update(id, "A1", &sheetsv4.ValueRange{Values: [][]interface{}{header}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	c.logger.Info("orders worksheet header created", "spreadsheet", id)
	return nil
}

func (c *Client) ensureMenuTab(ctx context.Context, id string) error {
	doc, err := c.svc.Spreadsheets.Get(id).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("load spreadsheet: %w", err)
	}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == menuTab {
			return nil
		}
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(id, &sheetsv4.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsv4.Request{{
			AddSheet: &sheetsv4.AddSheetRequest{
				Properties: &sheetsv4.SheetProperties{Title: menuTab},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create menu tab: %w", err)
	}
	return nil
}

func sortedCategories(m menu.Menu) []string {
	cats := make([]string, 0, len(m))
	for c := range m {
		cats = append(cats, c)
	}
	// Stable order keeps repeated syncs from reshuffling the tab.
	sort.Strings(cats)
	return cats
}
