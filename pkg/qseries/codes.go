package qseries

import (
	"fmt"
	"strings"
)

// Command is a 32-bit Qseries command code.
type Command uint32

// Message types.
const (
	TypeCommand        Command = 0x0000
	TypeParameter      Command = 0x1000
	TypeDeviceProperty Command = 0x2000
	TypeMeasuredValue  Command = 0x3000
	TypeBulkData       Command = 0x4000
)

// Message kinds.
const (
	KindGet    Command = 0x000
	KindSet    Command = 0x100
	KindMin    Command = 0x200
	KindMax    Command = 0x300
	KindDef    Command = 0x400
	KindType   Command = 0x800
	KindName   Command = 0x900
	KindUnit   Command = 0xA00
	KindLength Command = 0xF00
)

// Command indices for TypeCommand.
const (
	idxInitialize     Command = 0x00
	idxBye            Command = 0x01
	idxSystemReset    Command = 0x02
	idxParameterReset Command = 0x03
	idxStartExposure  Command = 0x04
	idxCancelExposure Command = 0x05
)

// Parameter indices.
const (
	idxExposureTime          Command = 0x00
	idxAveraging             Command = 0x01
	idxProcessingSteps       Command = 0x02
	idxIOConfiguration       Command = 0x03
	idxTriggerConfiguration  Command = 0x04
	idxTriggerDelay          Command = 0x05
	idxExternalTriggerEnable Command = 0x06
)

// Device property indices.
const (
	idxDeviceID           Command = 0x00
	idxSerialNo           Command = 0x01
	idxManufacturer       Command = 0x02
	idxModelName          Command = 0x03
	idxHardwareVersion    Command = 0x04
	idxSoftwareVersion    Command = 0x05
	idxSpectrumMaxValue   Command = 0x06
	idxPixelCount         Command = 0x07
	idxDataCount          Command = 0x08
	idxFirstOffsetPixel   Command = 0x09
	idxNumOffsetPixels    Command = 0x0A
	idxFirstDarkPixel     Command = 0x0B
	idxNumDarkPixels      Command = 0x0C
	idxFirstRealPixel     Command = 0x0D
	idxMirrorSpectrum     Command = 0x0F
	idxSensorType         Command = 0x10
	idxCalibrDataNumPages Command = 0x1A
	idxUserDataNumPages   Command = 0x1B
)

// Measured value indices.
const (
	idxStatus             Command = 0x00
	idxSensorTemperature  Command = 0x01
	idxIOPortStatus       Command = 0x02
	idxSysTick            Command = 0x03
	idxRemainingExposures Command = 0x04
	idxBufferCount        Command = 0x05
)

// Bulk data indices.
const (
	idxSpectrum                 Command = 0x00
	idxWavelengths              Command = 0x01
	idxCalibrationData          Command = 0x02
	idxUserData                 Command = 0x03
	idxWavelengthCoefficients   Command = 0x05
	idxNonlinearityCoefficients Command = 0x06
)

// Commands used by the driver.
const (
	CmdInitialize     = TypeCommand | idxInitialize
	CmdBye            = TypeCommand | idxBye
	CmdSystemReset    = TypeCommand | idxSystemReset
	CmdParameterReset = TypeCommand | idxParameterReset
	CmdStartExposure  = TypeCommand | idxStartExposure
	CmdCancelExposure = TypeCommand | idxCancelExposure

	CmdGetExposureTime    = TypeParameter | KindGet | idxExposureTime
	CmdSetExposureTime    = TypeParameter | KindSet | idxExposureTime
	CmdGetMinExposureTime = TypeParameter | KindMin | idxExposureTime
	CmdGetMaxExposureTime = TypeParameter | KindMax | idxExposureTime

	CmdGetAveraging    = TypeParameter | KindGet | idxAveraging
	CmdSetAveraging    = TypeParameter | KindSet | idxAveraging
	CmdGetMaxAveraging = TypeParameter | KindMax | idxAveraging

	CmdGetProcessingSteps        = TypeParameter | KindGet | idxProcessingSteps
	CmdSetProcessingSteps        = TypeParameter | KindSet | idxProcessingSteps
	CmdGetMaxProcessingSteps     = TypeParameter | KindMax | idxProcessingSteps
	CmdGetDefaultProcessingSteps = TypeParameter | KindDef | idxProcessingSteps

	CmdGetPortConfig           = TypeParameter | KindGet | idxIOConfiguration
	CmdSetPortConfig           = TypeParameter | KindSet | idxIOConfiguration
	CmdGetTriggerConfiguration = TypeParameter | KindGet | idxTriggerConfiguration
	CmdSetTriggerConfiguration = TypeParameter | KindSet | idxTriggerConfiguration
	CmdGetTriggerDelay         = TypeParameter | KindGet | idxTriggerDelay
	CmdGetTriggerEnabled       = TypeParameter | KindGet | idxExternalTriggerEnable
	CmdSetTriggerEnabled       = TypeParameter | KindSet | idxExternalTriggerEnable

	CmdGetDeviceID                = TypeDeviceProperty | KindGet | idxDeviceID
	CmdGetSerialNo                = TypeDeviceProperty | KindGet | idxSerialNo
	CmdGetManufacturer            = TypeDeviceProperty | KindGet | idxManufacturer
	CmdGetModelName               = TypeDeviceProperty | KindGet | idxModelName
	CmdGetHardwareVersion         = TypeDeviceProperty | KindGet | idxHardwareVersion
	CmdGetSoftwareVersion         = TypeDeviceProperty | KindGet | idxSoftwareVersion
	CmdGetMaxDataValue            = TypeDeviceProperty | KindGet | idxSpectrumMaxValue
	CmdGetPixelCount              = TypeDeviceProperty | KindGet | idxPixelCount
	CmdGetDataCount               = TypeDeviceProperty | KindGet | idxDataCount
	CmdGetFirstOffsetPixel        = TypeDeviceProperty | KindGet | idxFirstOffsetPixel
	CmdGetNumOffsetPixels         = TypeDeviceProperty | KindGet | idxNumOffsetPixels
	CmdGetFirstDarkPixel          = TypeDeviceProperty | KindGet | idxFirstDarkPixel
	CmdGetNumDarkPixels           = TypeDeviceProperty | KindGet | idxNumDarkPixels
	CmdGetFirstRealPixel          = TypeDeviceProperty | KindGet | idxFirstRealPixel
	CmdGetMirrorSpectrum          = TypeDeviceProperty | KindGet | idxMirrorSpectrum
	CmdGetSensorType              = TypeDeviceProperty | KindGet | idxSensorType
	CmdGetCalibrationDataNumPages = TypeDeviceProperty | KindGet | idxCalibrDataNumPages
	CmdGetUserDataNumPages        = TypeDeviceProperty | KindGet | idxUserDataNumPages

	CmdGetStatus             = TypeMeasuredValue | KindGet | idxStatus
	CmdGetTemperature        = TypeMeasuredValue | KindGet | idxSensorTemperature
	CmdReadPort              = TypeMeasuredValue | KindGet | idxIOPortStatus
	CmdGetSysTick            = TypeMeasuredValue | KindGet | idxSysTick
	CmdGetRemainingExposures = TypeMeasuredValue | KindGet | idxRemainingExposures
	CmdGetBufferCount        = TypeMeasuredValue | KindGet | idxBufferCount

	CmdGetSpectrum                 = TypeBulkData | KindGet | idxSpectrum
	CmdGetWavelengths              = TypeBulkData | KindGet | idxWavelengths
	CmdGetCalibrationData          = TypeBulkData | KindGet | idxCalibrationData
	CmdGetUserData                 = TypeBulkData | KindGet | idxUserData
	CmdGetWavelengthCoefficients   = TypeBulkData | KindGet | idxWavelengthCoefficients
	CmdGetNonlinearityCoefficients = TypeBulkData | KindGet | idxNonlinearityCoefficients
)

var commandNames = map[Command]string{
	CmdInitialize:                  "Initialize",
	CmdBye:                         "Bye",
	CmdSystemReset:                 "SystemReset",
	CmdParameterReset:              "ParameterReset",
	CmdStartExposure:               "StartExposure",
	CmdCancelExposure:              "CancelExposure",
	CmdGetExposureTime:             "GetExposureTime",
	CmdSetExposureTime:             "SetExposureTime",
	CmdGetMinExposureTime:          "GetMinExposureTime",
	CmdGetMaxExposureTime:          "GetMaxExposureTime",
	CmdGetAveraging:                "GetAveraging",
	CmdSetAveraging:                "SetAveraging",
	CmdGetMaxAveraging:             "GetMaxAveraging",
	CmdGetProcessingSteps:          "GetProcessingSteps",
	CmdSetProcessingSteps:          "SetProcessingSteps",
	CmdGetMaxProcessingSteps:       "GetMaxProcessingSteps",
	CmdGetDefaultProcessingSteps:   "GetDefaultProcessingSteps",
	CmdGetPortConfig:               "GetPortConfig",
	CmdSetPortConfig:               "SetPortConfig",
	CmdGetTriggerConfiguration:     "GetTriggerConfiguration",
	CmdSetTriggerConfiguration:     "SetTriggerConfiguration",
	CmdGetTriggerDelay:             "GetTriggerDelay",
	CmdGetTriggerEnabled:           "GetTriggerEnabled",
	CmdSetTriggerEnabled:           "SetTriggerEnabled",
	CmdGetDeviceID:                 "GetDeviceID",
	CmdGetSerialNo:                 "GetSerialNo",
	CmdGetManufacturer:             "GetManufacturer",
	CmdGetModelName:                "GetModelName",
	CmdGetHardwareVersion:          "GetHardwareVersion",
	CmdGetSoftwareVersion:          "GetSoftwareVersion",
	CmdGetMaxDataValue:             "GetMaxDataValue",
	CmdGetPixelCount:               "GetPixelCount",
	CmdGetDataCount:                "GetDataCount",
	CmdGetFirstOffsetPixel:         "GetFirstOffsetPixel",
	CmdGetNumOffsetPixels:          "GetNumOffsetPixels",
	CmdGetFirstDarkPixel:           "GetFirstDarkPixel",
	CmdGetNumDarkPixels:            "GetNumDarkPixels",
	CmdGetFirstRealPixel:           "GetFirstRealPixel",
	CmdGetMirrorSpectrum:           "GetMirrorSpectrum",
	CmdGetSensorType:               "GetSensorType",
	CmdGetCalibrationDataNumPages:  "GetCalibrationDataNumPages",
	CmdGetUserDataNumPages:         "GetUserDataNumPages",
	CmdGetStatus:                   "GetStatus",
	CmdGetTemperature:              "GetTemperature",
	CmdReadPort:                    "ReadPort",
	CmdGetSysTick:                  "GetSysTick",
	CmdGetRemainingExposures:       "GetRemainingExposures",
	CmdGetBufferCount:              "GetBufferCount",
	CmdGetSpectrum:                 "GetSpectrum",
	CmdGetWavelengths:              "GetWavelengths",
	CmdGetCalibrationData:          "GetCalibrationData",
	CmdGetUserData:                 "GetUserData",
	CmdGetWavelengthCoefficients:   "GetWavelengthCoefficients",
	CmdGetNonlinearityCoefficients: "GetNonlinearityCoefficients",
}

// Type returns the message type field.
func (c Command) Type() Command { return c & 0xF000 }

// Kind returns the message kind field.
func (c Command) Kind() Command { return c & 0x0F00 }

// Index returns the index field.
func (c Command) Index() uint8 { return uint8(c) }

// String returns the command name, or its hex code if unknown.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", uint32(c))
}

// ReturnCode is the first byte of every device response.
type ReturnCode uint8

const (
	RetOK ReturnCode = iota
	RetUnknownCommandCode
	RetInvalidParameter
	RetMissingParameter
	RetInvalidOperation
	RetNotSupported
	RetPasscodeInvalid
	RetCommunicationError
	RetInternalError
	// RetUnknownBootloaderCommandCode replaces RetUnknownCommandCode while
	// the bootloader is active.
	RetUnknownBootloaderCommandCode
)

// String returns the return code description.
func (r ReturnCode) String() string {
	switch r {
	case RetOK:
		return "success"
	case RetUnknownCommandCode:
		return "unknown command code"
	case RetInvalidParameter:
		return "invalid parameter"
	case RetMissingParameter:
		return "missing parameter"
	case RetInvalidOperation:
		return "invalid operation"
	case RetNotSupported:
		return "not supported"
	case RetPasscodeInvalid:
		return "passcode invalid"
	case RetCommunicationError:
		return "communication error"
	case RetInternalError:
		return "internal error"
	case RetUnknownBootloaderCommandCode:
		return "unknown command code (bootloader active)"
	default:
		return fmt.Sprintf("return code %d", uint8(r))
	}
}

// Status is the acquisition state of a spectrometer.
type Status int8

const (
	StatusIdle              Status = 0
	StatusWaitingForTrigger Status = 1
	StatusTakingSpectrum    Status = 2
	StatusNotReady          Status = -1
	StatusBusy              Status = -2
	StatusError             Status = -3
	StatusClosed            Status = -4
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusWaitingForTrigger:
		return "WAITING_FOR_TRIGGER"
	case StatusTakingSpectrum:
		return "TAKING_SPECTRUM"
	case StatusNotReady:
		return "NOT_READY"
	case StatusBusy:
		return "BUSY"
	case StatusError:
		return "ERROR"
	case StatusClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("STATUS(%d)", int8(s))
	}
}

// Exposure counts accepted by StartExposure besides a positive count.
const (
	// ContinuousLatest keeps exposing and retains only the newest spectrum.
	ContinuousLatest int32 = -1
	// ContinuousAll keeps exposing and queues every spectrum until the
	// device buffer overflows.
	ContinuousAll    int32 = -2
)

// TriggerOption selects how exposures relate to trigger events.
type TriggerOption uint8

const (
	TriggerFreeRunningEnd   TriggerOption = 0
	TriggerFreeRunningStart TriggerOption = 1
	TriggerHardware         TriggerOption = 2
)

// String returns the trigger option name.
func (o TriggerOption) String() string {
	switch o {
	case TriggerFreeRunningEnd:
		return "free_running_trigger_end"
	case TriggerFreeRunningStart:
		return "free_running_trigger_start"
	case TriggerHardware:
		return "hardware_triggered"
	default:
		return fmt.Sprintf("trigger_option(%d)", uint8(o))
	}
}

// IOConfig configures one digital I/O pin.
type IOConfig uint8

const (
	IOOutputConstantLow        IOConfig = 0
	IOOutputConstantHigh       IOConfig = 1
	IOOutputDuringExpLow       IOConfig = 2
	IOOutputDuringExpHigh      IOConfig = 3
	IOInput                    IOConfig = 4
	IOOutputPulsed             IOConfig = 8
	IOOutputDuringExpPulsedLow IOConfig = 10
	IOOutputDuringExpPulsedHi  IOConfig = 11
)

// NumIOPins is the number of digital I/O pins on a Qseries device.
const NumIOPins = 4

// ProcessingSteps is a bitmask of on-board spectrum processing steps.
type ProcessingSteps uint16

const (
	StepAdjustOffset ProcessingSteps = 1 << iota
	StepCorrectNonlinearity
	StepRemovePermanentBadPixels
	StepSubtractDark
	StepRemoveTemporaryBadPixels
	StepCompensateStrayLight
	StepNormalizeExposureTime
	StepSensitivityCalibration
	StepSensitivitySmoothing
	StepAdditionalFiltering
	StepScaleTo16BitRange
)

var stepNames = []string{
	"adjust_offset",
	"correct_nonlinearity",
	"remove_permanent_bad_pixels",
	"subtract_dark",
	"remove_temporary_bad_pixels",
	"compensate_stray_light",
	"normalize_exposure_time",
	"sensitivity_calibration",
	"sensitivity_smoothing",
	"additional_filtering",
	"scale_to_16bit_range",
}

// Has reports whether every step in other is set.
func (p ProcessingSteps) Has(other ProcessingSteps) bool {
	return p&other == other
}

// String lists the set steps separated by "|", or "raw" when none are set.
func (p ProcessingSteps) String() string {
	if p == 0 {
		return "raw"
	}
	var names []string
	for i, name := range stepNames {
		if p&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if rest := p &^ (1<<len(stepNames) - 1); rest != 0 {
		names = append(names, fmt.Sprintf("0x%X", uint16(rest)))
	}
	return strings.Join(names, "|")
}

// IntensityUnit is the y-axis unit of a spectrum.
type IntensityUnit uint16

const (
	UnitUnknown IntensityUnit = iota
	UnitADCValues
	UnitADCNormalized
	UnitNanoWattPerNm
	UnitNanoWattPerSquareMeterNm
	UnitWattPerSrSquareMeterNm
	UnitWattPerSrNm
)

// String returns the unit symbol, or "" for unknown units.
func (u IntensityUnit) String() string {
	switch u {
	case UnitADCValues:
		return "counts"
	case UnitADCNormalized:
		return "counts/s"
	case UnitNanoWattPerNm:
		return "nW/nm"
	case UnitNanoWattPerSquareMeterNm:
		return "nW/(m^2 nm)"
	case UnitWattPerSrSquareMeterNm:
		return "W/(sr m^2 nm)"
	case UnitWattPerSrNm:
		return "W/(sr nm)"
	default:
		return ""
	}
}
