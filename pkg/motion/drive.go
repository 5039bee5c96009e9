package motion

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ryandielhenn/izzy/pkg/status"
)

// Geometry is the drivetrain's physical description.
type Geometry struct {
	WheelRadiusMM     float64
	SystemRadiusMM    float64
	EncoderResolution int
	MotorRatio        int
}

// DriveResolution is encoder ticks per centimeter of travel.
func (g Geometry) DriveResolution() int {
	return int(math.Pi * g.WheelRadiusMM * 2 * float64(g.EncoderResolution) * float64(g.MotorRatio))
}

// TurnResolution is encoder ticks per degree of turn.
func (g Geometry) TurnResolution() int {
	return int(math.Pi / 180 * g.SystemRadiusMM * float64(g.DriveResolution()))
}

func (g Geometry) driveUnits() string { return fmt.Sprintf("1 centimeter = %d ticks", g.DriveResolution()) }
func (g Geometry) turnUnits() string { return fmt.Sprintf("1 degree = %d ticks", g.TurnResolution()) }

// Drive issues movement commands on the drive and turn channels and records
// the resulting heading, speed and position in the telemetry.
type Drive struct {
	drive *Channel
	turn  *Channel
	geo   Geometry
	tel   *status.Telemetry
	log   *zap.Logger
}

// NewDrive powers up both channels and sets their units.
func NewDrive(ctl *Controller, geo Geometry, tel *status.Telemetry, log *zap.Logger) (*Drive, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Drive{drive: ctl.Channel("D"), turn: ctl.Channel("T"), geo: geo, tel: tel, log: log}
	if err := d.setup(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Drive) setup() error {
	return errors.Join(
		d.drive.Start(),
		d.turn.Start(),
		d.drive.Units(d.geo.driveUnits()),
		d.turn.Units(d.geo.turnUnits()),
	)
}

// Turn turns to an absolute heading in degrees at the current turn speed.
func (d *Drive) Turn(angle int16) error {
	if err := d.turn.Position(int(angle)); err != nil {
		return err
	}
	d.tel.SetHeading(angle)
	return nil
}

func (d *Drive) TurnAt(angle, speed int16) error {
	if err := d.turn.PositionAt(int(angle), int(speed)); err != nil {
		return err
	}
	d.tel.SetHeading(angle)
	return nil
}

// IncreaseTurn turns by inc degrees; positive is clockwise.
func (d *Drive) IncreaseTurn(inc int16) error {
	if err := d.turn.Increment(int(inc)); err != nil {
		return err
	}
	d.tel.AddHeading(inc)
	return nil
}

func (d *Drive) IncreaseTurnAt(inc, speed int16) error {
	if err := d.turn.IncrementAt(int(inc), int(speed)); err != nil {
		return err
	}
	d.tel.AddHeading(inc)
	return nil
}

func (d *Drive) SetSpeed(speed int16) error {
	if err := d.drive.Speed(int(speed)); err != nil {
		return err
	}
	d.tel.SetSpeed(speed)
	return nil
}

// IncreaseSpeed changes the speed by inc.
func (d *Drive) IncreaseSpeed(inc int16) error {
	if err := d.drive.SpeedIncrement(int(inc)); err != nil {
		return err
	}
	d.tel.AddSpeed(inc)
	return nil
}

// Move travels distance along the current heading at speed and advances the
// recorded position.
func (d *Drive) Move(distance, speed int16) error {
	if err := d.drive.IncrementAt(int(distance), int(speed)); err != nil {
		return err
	}
	s := d.tel.Snapshot()
	rad := float64(s.Heading) * math.Pi / 180
	x := s.X + int16(math.Round(float64(distance)*math.Cos(rad)))
	y := s.Y + int16(math.Round(float64(distance)*math.Sin(rad)))
	d.tel.SetPosition(x, y, s.Z)
	d.tel.SetSpeed(speed)
	return nil
}

// SoftEStop powers both channels down and reports EStop. The status is set
// even when the controller does not acknowledge.
func (d *Drive) SoftEStop() error {
	err := errors.Join(d.drive.PowerDown(), d.turn.PowerDown())
	d.tel.SetSpeed(0)
	d.tel.SetStatus(status.EStop)
	if err != nil {
		d.log.Error("soft estop", zap.Error(err))
	} else {
		d.log.Warn("soft estop")
	}
	return err
}

// Reset powers the channels back up with their units and leaves EStop.
func (d *Drive) Reset() error {
	if err := d.setup(); err != nil {
		return err
	}
	if d.tel.Status() == status.EStop {
		d.tel.SetStatus(status.Available)
	}
	d.log.Info("drive reset")
	return nil
}
