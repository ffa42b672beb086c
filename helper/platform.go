package helper

import (
	"github.com/pro-utkarshM/axiomOS-sub000/errcode"
	"github.com/pro-utkarshM/axiomOS-sub000/khost"
)

// RegisterPlatformFamily adds the GPIO/PWM/sensor/emergency-stop helpers
// (§4.6 "Platform-specific families ... extend the registry; their
// presence is a build-time property") to reg, backed by io. A build with
// no platform I/O simply does not call this.
func RegisterPlatformFamily(reg *Registry, io khost.PlatformIO) error {
	for _, h := range []*Helper{
		newGPIORead(io),
		newGPIOWrite(io),
		newPWMSetDuty(io),
		newSensorRead(io),
		newEmergencyStop(io),
	} {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

func newGPIORead(io khost.PlatformIO) *Helper {
	return &Helper{
		ID:   IDGPIORead,
		Name: "gpio_read",
		Signature: Signature{
			Args:   [5]Arg{{Kind: ArgScalar}, {Kind: ArgScalar}},
			Return: ArgScalar,
		},
		Invoke: func(_ Memory, args [5]uint64) (uint64, error) {
			high, err := io.GPIORead(uint32(args[0]), uint32(args[1]))
			if err != nil {
				return uint64(int64(errcode.Generic)), nil
			}
			if high {
				return 1, nil
			}
			return 0, nil
		},
	}
}

func newGPIOWrite(io khost.PlatformIO) *Helper {
	return &Helper{
		ID:   IDGPIOWrite,
		Name: "gpio_write",
		Signature: Signature{
			Args:   [5]Arg{{Kind: ArgScalar}, {Kind: ArgScalar}, {Kind: ArgScalar}},
			Return: ArgScalar,
		},
		Invoke: func(_ Memory, args [5]uint64) (uint64, error) {
			err := io.GPIOWrite(uint32(args[0]), uint32(args[1]), args[2] != 0)
			return uint64(int64(boolErrToStatus(err))), nil
		},
	}
}

func newPWMSetDuty(io khost.PlatformIO) *Helper {
	return &Helper{
		ID:   IDPWMSetDuty,
		Name: "pwm_set_duty_cycle",
		Signature: Signature{
			Args:   [5]Arg{{Kind: ArgScalar}, {Kind: ArgScalar}, {Kind: ArgScalar}},
			Return: ArgScalar,
		},
		Invoke: func(_ Memory, args [5]uint64) (uint64, error) {
			err := io.PWMSetDutyCycle(uint32(args[0]), uint32(args[1]), uint32(args[2]))
			return uint64(int64(boolErrToStatus(err))), nil
		},
	}
}

func newSensorRead(io khost.PlatformIO) *Helper {
	return &Helper{
		ID:   IDSensorRead,
		Name: "sensor_read",
		Signature: Signature{
			Args:   [5]Arg{{Kind: ArgScalar}, {Kind: ArgScalar}},
			Return: ArgScalar,
		},
		Invoke: func(_ Memory, args [5]uint64) (uint64, error) {
			raw, err := io.SensorRead(uint32(args[0]), uint32(args[1]))
			if err != nil {
				return uint64(int64(errcode.Generic)), nil
			}
			return uint64(raw), nil
		},
	}
}

func newEmergencyStop(io khost.PlatformIO) *Helper {
	return &Helper{
		ID:   IDEmergencyStop,
		Name: "emergency_stop",
		Signature: Signature{
			Return: ArgScalar,
		},
		Invoke: func(Memory, [5]uint64) (uint64, error) {
			return uint64(int64(boolErrToStatus(io.EmergencyStop()))), nil
		},
	}
}

func boolErrToStatus(err error) int64 {
	if err == nil {
		return 0
	}
	return errcode.Generic
}
