package framework

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
)

// Inventory is an in-memory appliance inventory API served over HTTP
type Inventory struct {
	mu           sync.Mutex
	appliances   []types.Appliance
	failures     map[string]int // "drain/<id>" or "remediate/<id>" -> status
	drains       []string
	remediations []string
	listCalls    int
	nextID       int

	server *httptest.Server
}

// NewInventory starts a fake inventory server; call Close when done
func NewInventory() *Inventory {
	inv := &Inventory{
		failures: make(map[string]int),
		nextID:   1000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/1.0/appliances", inv.list)
	mux.HandleFunc("POST /api/1.0/appliances/{id}/drain", inv.action("drain"))
	mux.HandleFunc("POST /api/1.0/appliances/{id}/remediate", inv.action("remediate"))
	inv.server = httptest.NewServer(mux)
	return inv
}

// URL returns the base URL of the fake inventory
func (inv *Inventory) URL() string {
	return inv.server.URL
}

// Close shuts the server down
func (inv *Inventory) Close() {
	inv.server.Close()
}

// AddLive registers a LIVE appliance last heard from at lastHeard
func (inv *Inventory) AddLive(id string, lastHeard time.Time) {
	ts := lastHeard.UTC().Format(time.RFC3339Nano)
	inv.Add(types.Appliance{ID: id, OpStatus: types.OpStatusLive, LastHeardFromOn: &ts})
}

// Add registers an appliance
func (inv *Inventory) Add(a types.Appliance) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.appliances = append(inv.appliances, a)
}

// Remove deletes an appliance so that actions on it return 404
func (inv *Inventory) Remove(id string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i, a := range inv.appliances {
		if a.ID == id {
			inv.appliances = append(inv.appliances[:i], inv.appliances[i+1:]...)
			return
		}
	}
}

// Fail makes every call of action ("drain" or "remediate") on id return status
func (inv *Inventory) Fail(action, id string, status int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.failures[action+"/"+id] = status
}

// Drains returns the ids of successfully drained appliances, in call order
func (inv *Inventory) Drains() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]string(nil), inv.drains...)
}

// Remediations returns the ids of successfully remediated appliances, in call order
func (inv *Inventory) Remediations() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]string(nil), inv.remediations...)
}

// ListCalls returns the number of listing requests served
func (inv *Inventory) ListCalls() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.listCalls
}

// list serves cursor pagination; the cursor is the offset of the next item
func (inv *Inventory) list(w http.ResponseWriter, r *http.Request) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.listCalls++

	first, err := strconv.Atoi(r.URL.Query().Get("first"))
	if err != nil || first <= 0 {
		http.Error(w, "invalid first", http.StatusBadRequest)
		return
	}
	offset := 0
	if after := r.URL.Query().Get("after"); after != "" {
		if offset, err = strconv.Atoi(after); err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
	}

	end := offset + first
	if end > len(inv.appliances) {
		end = len(inv.appliances)
	}
	data := []types.Appliance{}
	if offset < end {
		data = append(data, inv.appliances[offset:end]...)
	}

	total := len(inv.appliances)
	info := &types.PageInfo{TotalCount: &total, HasNextPage: end < total}
	if info.HasNextPage {
		cursor := strconv.Itoa(end)
		info.EndCursor = &cursor
	}

	writeJSON(w, types.AppliancePage{Data: data, PageInfo: info})
}

func (inv *Inventory) action(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req types.ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Actor == "" || !strings.Contains(req.Reason, id) {
			http.Error(w, "invalid action request", http.StatusBadRequest)
			return
		}

		inv.mu.Lock()
		defer inv.mu.Unlock()

		if status, ok := inv.failures[name+"/"+id]; ok {
			http.Error(w, name+" failed", status)
			return
		}
		if !inv.exists(id) {
			http.Error(w, "appliance not found", http.StatusNotFound)
			return
		}

		inv.nextID++
		switch name {
		case "drain":
			inv.drains = append(inv.drains, id)
			writeJSON(w, map[string]interface{}{"drainId": inv.nextID, "estimatedTimeToDrain": "PT1H"})
		case "remediate":
			inv.remediations = append(inv.remediations, id)
			writeJSON(w, map[string]interface{}{"remediationId": inv.nextID, "remediationResult": "SUCCESS"})
		}
	}
}

func (inv *Inventory) exists(id string) bool {
	for _, a := range inv.appliances {
		if a.ID == id {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
