package node

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

type fakeDriver struct {
	calls []string
	err   error
}

func (d *fakeDriver) record(c string) error {
	d.calls = append(d.calls, c)
	return d.err
}

func (d *fakeDriver) SetSpeed(v int16) error { return d.record("speed " + strconv.Itoa(int(v))) }
func (d *fakeDriver) Turn(a int16) error { return d.record("turn " + strconv.Itoa(int(a))) }
func (d *fakeDriver) SoftEStop() error { return d.record("estop") }
func (d *fakeDriver) Reset() error { return d.record("reset") }

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/motion", strings.NewReader(body)))
	return rec
}

func TestMotionCommands(t *testing.T) {
	d := &fakeDriver{}
	m := NewMotion(d, nil)

	for _, rec := range []*httptest.ResponseRecorder{
		post(m.Speed, "40\n"),
		post(m.Turn, "-90"),
		post(m.EStop, ""),
		post(m.Reset, ""),
	} {
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
		}
	}
	if got := strings.Join(d.calls, "|"); got != "speed 40|turn -90|estop|reset" {
		t.Fatalf("calls = %q", got)
	}
}

func TestMotionRejectsBadInput(t *testing.T) {
	d := &fakeDriver{}
	m := NewMotion(d, nil)

	for _, body := range []string{"fast", "40000", ""} {
		if rec := post(m.Speed, body); rec.Code != http.StatusBadRequest {
			t.Fatalf("speed %q = %d", body, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	m.Speed(rec, httptest.NewRequest(http.MethodGet, "/motion/speed", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET = %d", rec.Code)
	}
	if len(d.calls) != 0 {
		t.Fatalf("driver called on bad input: %v", d.calls)
	}
}

func TestMotionControllerFailure(t *testing.T) {
	m := NewMotion(&fakeDriver{err: errors.New("device gone")}, nil)
	if rec := post(m.Speed, "10"); rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}
