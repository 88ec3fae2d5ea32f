package menu

import (
	"encoding/json"
	"sort"
	"sync"
)

// Item is a single menu entry. The JSON shape (item/price, both strings)
// matches the Menu spreadsheet tab and the settings document.
type Item struct {
	Name  string `json:"item"`
	Price string `json:"price"`
}

// Menu maps a category name to its items, in menu order.
type Menu map[string][]Item

// Dump renders the menu as indented JSON with categories in sorted order,
// suitable for embedding verbatim in a system prompt. Deterministic for a
// given menu so prompt construction stays a pure function of its inputs.
func (m Menu) Dump() string {
	if len(m) == 0 {
		return "{}"
	}
	cats := make([]string, 0, len(m))
	for c := range m {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	ordered := make([]struct {
		name  string
		items []Item
	}, 0, len(cats))
	for _, c := range cats {
		ordered = append(ordered, struct {
			name  string
			items []Item
		}{c, m[c]})
	}

	var sb []byte
	sb = append(sb, '{', '\n')
	for i, cat := range ordered {
		key, _ := json.Marshal(cat.name)
		val, _ := json.MarshalIndent(cat.items, "  ", "  ")
		sb = append(sb, ' ', ' ')
		sb = append(sb, key...)
		sb = append(sb, ':', ' ')
		sb = append(sb, val...)
		if i < len(ordered)-1 {
			sb = append(sb, ',')
		}
		sb = append(sb, '\n')
	}
	sb = append(sb, '}')
	return string(sb)
}

// Holder owns the process-wide "current menu" value. It is resolved once at
// startup and replaced only by an explicit refresh; prompt builds read
// whatever is current at the time. A build racing a refresh may see the
// previous menu, which is fine — menu changes are infrequent.
type Holder struct {
	mu sync.RWMutex
	m  Menu
}

func NewHolder(initial Menu) *Holder {
	return &Holder{m: initial}
}

func (h *Holder) Current() Menu {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.m
}

func (h *Holder) Set(m Menu) {
	h.mu.Lock()
	h.m = m
	h.mu.Unlock()
}
