package node

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Driver is the subset of motion.Drive exposed over HTTP.
type Driver interface {
	SetSpeed(speed int16) error
	Turn(angle int16) error
	SoftEStop() error
	Reset() error
}

// Motion serves manual drive commands. Values are plain integers in the
// request body, e.g. POST /motion/speed with "40".
type Motion struct {
	d   Driver
	log *zap.Logger
}

func NewMotion(d Driver, log *zap.Logger) *Motion {
	if log == nil {
		log = zap.NewNop()
	}
	return &Motion{d: d, log: log}
}

func (m *Motion) Speed(w http.ResponseWriter, r *http.Request) {
	m.withValue(w, r, "speed", m.d.SetSpeed)
}

// Turn sets an absolute heading in degrees.
func (m *Motion) Turn(w http.ResponseWriter, r *http.Request) {
	m.withValue(w, r, "turn", m.d.Turn)
}

func (m *Motion) EStop(w http.ResponseWriter, r *http.Request) {
	m.run(w, r, "estop", m.d.SoftEStop)
}

func (m *Motion) Reset(w http.ResponseWriter, r *http.Request) {
	m.run(w, r, "reset", m.d.Reset)
}

func (m *Motion) withValue(w http.ResponseWriter, r *http.Request, op string, fn func(int16) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 32))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 16)
	if err != nil {
		http.Error(w, "body must be an int16", http.StatusBadRequest)
		return
	}
	m.finish(w, op, fn(int16(v)), zap.Int64("value", v))
}

func (m *Motion) run(w http.ResponseWriter, r *http.Request, op string, fn func() error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m.finish(w, op, fn())
}

// finish reports controller failures as 502: the request was fine, the
// serial link was not.
func (m *Motion) finish(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op))
	if err != nil {
		m.log.Warn("motion command failed", append(fields, zap.Error(err))...)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	m.log.Info("motion command", fields...)
	w.WriteHeader(http.StatusNoContent)
}
