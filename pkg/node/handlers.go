package node

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/izzy/pkg/status"
)

// Healthz returns 200 OK to indicate the unit process is alive.
func (n *Node) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type peerInfo struct {
	ID          string    `json:"id"`
	Addr        string    `json:"addr"`
	LastContact time.Time `json:"last_contact"`
	Status      string    `json:"status"`
}

type infoResp struct {
	PID        int             `json:"pid"`
	Now        time.Time       `json:"now"`
	Unit       string          `json:"unit"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Telemetry  status.Snapshot `json:"telemetry"`
	Peer       *peerInfo       `json:"peer,omitempty"`
	QueueDepth int             `json:"queue_depth"`
}

// Info writes the unit's identity, status, telemetry and bound peer as JSON.
func (n *Node) Info(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	snap := n.tel.Snapshot()
	resp := infoResp{
		PID:        os.Getpid(),
		Now:        now,
		Unit:       n.id.String(),
		Name:       n.name,
		Status:     snap.Status.String(),
		Telemetry:  snap,
		QueueDepth: n.q.len(),
	}
	if p, ok := n.tracker.Peer(now); ok {
		pi := &peerInfo{ID: p.ID.String(), LastContact: p.LastContact, Status: p.Status.String()}
		if p.Addr != nil {
			pi.Addr = p.Addr.String()
		}
		resp.Peer = pi
	}
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Session handles DELETE /session: an explicit reset of the bound peer so a
// different supervisor can take over.
func (n *Node) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !n.tracker.Reset() {
		http.Error(w, "no peer bound", http.StatusNotFound)
		return
	}
	n.log.Info("peer session reset")
	w.WriteHeader(http.StatusNoContent)
}

// Status serves the operating status by name. GET returns it; PUT or POST
// set it from the body, e.g. "estop".
func (n *Node) Status(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Write([]byte(n.tel.Status().String()))
	case http.MethodPut, http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, 64))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s, ok := status.ParseStatus(strings.TrimSpace(string(body)))
		if !ok {
			http.Error(w, "unknown status", http.StatusBadRequest)
			return
		}
		n.tel.SetStatus(s)
		n.log.Info("status set", zap.Stringer("status", s))
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
