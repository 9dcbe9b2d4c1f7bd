package devices

import "fmt"

// Well-known property names on the robot API.
const (
	PropAreasToClean         = "Areas_To_Clean"
	PropBatteryCapacity      = "Battery_Capacity"
	PropChargingStatus       = "Charging_Status"
	PropCleanComplete        = "CleanComplete"
	PropCleaningStatistics   = "Cleaning_Statistics"
	PropDockedStatus         = "DockedStatus"
	PropErrorCode            = "Error_Code"
	PropEvacuating           = "Evacuating"
	PropFindDevice           = "Find_Device"
	PropLowLightMission      = "LowLightMission"
	PropNavModuleFWVersion   = "Nav_Module_FW_Version"
	PropOperatingMode        = "Operating_Mode"
	PropPowerMode            = "Power_Mode"
	PropRechargeResume       = "Recharge_Resume"
	PropRechargingToResume   = "Recharging_To_Resume"
	PropRobotFirmwareVersion = "Robot_Firmware_Version"
	PropRobotRoomList        = "Robot_Room_List"
	PropRSSI                 = "RSSI"
)

// settableProperties are the properties the service accepts writes to.
// Everything else is telemetry.
var settableProperties = map[string]bool{
	PropAreasToClean:    true,
	PropFindDevice:      true,
	PropLowLightMission: true,
	PropOperatingMode:   true,
	PropPowerMode:       true,
	PropRechargeResume:  true,
}

// Settable reports whether the property accepts writes.
func Settable(name string) bool {
	return settableProperties[name]
}

// OperatingMode is the robot's commanded activity.
type OperatingMode int

const (
	OperatingModeStop   OperatingMode = 0
	OperatingModePause  OperatingMode = 1
	OperatingModeStart  OperatingMode = 2
	OperatingModeReturn OperatingMode = 3
)

func (m OperatingMode) String() string {
	switch m {
	case OperatingModeStop:
		return "stop"
	case OperatingModePause:
		return "pause"
	case OperatingModeStart:
		return "start"
	case OperatingModeReturn:
		return "return"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseOperatingMode maps a mode name to its wire value.
func ParseOperatingMode(s string) (OperatingMode, error) {
	switch s {
	case "stop":
		return OperatingModeStop, nil
	case "pause":
		return OperatingModePause, nil
	case "start":
		return OperatingModeStart, nil
	case "return":
		return OperatingModeReturn, nil
	default:
		return 0, fmt.Errorf("unknown operating mode %q (valid: stop, pause, start, return)", s)
	}
}

// PowerMode is the robot's suction level.
type PowerMode int

const (
	PowerModeNormal PowerMode = 0
	PowerModeEco    PowerMode = 1
	PowerModeMax    PowerMode = 2
)

func (m PowerMode) String() string {
	switch m {
	case PowerModeNormal:
		return "normal"
	case PowerModeEco:
		return "eco"
	case PowerModeMax:
		return "max"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParsePowerMode maps a power mode name to its wire value.
func ParsePowerMode(s string) (PowerMode, error) {
	switch s {
	case "normal":
		return PowerModeNormal, nil
	case "eco":
		return PowerModeEco, nil
	case "max":
		return PowerModeMax, nil
	default:
		return 0, fmt.Errorf("unknown power mode %q (valid: normal, eco, max)", s)
	}
}

// errorMessages maps robot error codes to human-readable text.
var errorMessages = map[int]string{
	1:  "Side wheel is stuck",
	2:  "Side brush is stuck",
	3:  "Suction motor failed",
	4:  "Brushroll stuck",
	5:  "Side wheel is stuck (2)",
	6:  "Bumper is stuck",
	7:  "Cliff sensor is blocked",
	8:  "Battery power is low",
	9:  "No dustbin",
	10: "Fall sensor is blocked",
	11: "Front wheel is stuck",
	13: "Switched off",
	14: "Magnetic strip error",
	16: "Top bumper is stuck",
	18: "Wheel encoder error",
}

// ErrorMessage translates a robot error code. Code zero means no error and
// yields an empty string.
func ErrorMessage(code int) string {
	if code == 0 {
		return ""
	}
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error (%d)", code)
}
