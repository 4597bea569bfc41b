package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"civicdesk/internal/domain"
)

// StatusOpen is the status the relay assigns to a freshly recorded FIR.
const StatusOpen = "Open"

// ErrUnknownEntry is returned when a status update targets an entry the relay does not hold.
var ErrUnknownEntry = errors.New("unknown ledger entry")

// Relay records FIRs on an append-only ledger.
type Relay interface {
	RecordEntry(ctx context.Context, description string) (domain.LedgerReceipt, error)
	ListEntries(ctx context.Context) ([]domain.LedgerEntry, error)
	UpdateEntryStatus(ctx context.Context, id, status, notes string) (domain.LedgerReceipt, error)
}

// HTTPRelay talks to an external relay service over JSON.
type HTTPRelay struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPRelay(baseURL string, timeout time.Duration) *HTTPRelay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRelay{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRelay) RecordEntry(ctx context.Context, description string) (domain.LedgerReceipt, error) {
	var receipt domain.LedgerReceipt
	err := r.do(ctx, http.MethodPost, "/entries", map[string]string{"description": description}, &receipt)
	return receipt, err
}

func (r *HTTPRelay) ListEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	if err := r.do(ctx, http.MethodGet, "/entries", nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return entries, nil
}

func (r *HTTPRelay) UpdateEntryStatus(ctx context.Context, id, status, notes string) (domain.LedgerReceipt, error) {
	var receipt domain.LedgerReceipt
	err := r.do(ctx, http.MethodPatch, "/entries/"+url.PathEscape(id), map[string]string{"status": status, "notes": notes}, &receipt)
	return receipt, err
}

func (r *HTTPRelay) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound && method == http.MethodPatch {
		return ErrUnknownEntry
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("relay %s %s: %d %s", method, path, resp.StatusCode, msg)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode relay response: %w", err)
	}
	return nil
}

// MemoryRelay keeps entries in process. Used for local runs and tests.
type MemoryRelay struct {
	Reporter string
	Now      func() time.Time

	mu      sync.Mutex
	entries []domain.LedgerEntry
	nonce   int
}

func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{Reporter: "system", Now: time.Now}
}

func (m *MemoryRelay) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MemoryRelay) RecordEntry(_ context.Context, description string) (domain.LedgerReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := domain.LedgerEntry{
		ID:          strconv.Itoa(len(m.entries) + 1),
		Description: description,
		Reporter:    m.Reporter,
		Status:      StatusOpen,
		Timestamp:   domain.FormatTime(m.now()),
	}
	m.entries = append(m.entries, entry)
	return m.receipt("create", entry.ID, description), nil
}

func (m *MemoryRelay) ListEntries(context.Context) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *MemoryRelay) UpdateEntryStatus(_ context.Context, id, status, notes string) (domain.LedgerReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Status = status
			m.entries[i].ResolutionNotes = notes
			return m.receipt("update", id, status+"|"+notes), nil
		}
	}
	return domain.LedgerReceipt{}, ErrUnknownEntry
}

// receipt derives a pseudo transaction hash; callers hold m.mu.
func (m *MemoryRelay) receipt(op, id, data string) domain.LedgerReceipt {
	m.nonce++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", op, id, m.nonce, data)))
	return domain.LedgerReceipt{Hash: "0x" + hex.EncodeToString(sum[:])}
}
