// Package pmbus implements the PMBus command catalog, the SLINEAR11/
// ULINEAR16 data formats, and status-register decoding shared by every
// PMBus-compliant peripheral driver.
package pmbus

// Standard PMBus command codes (PMBus specification, table of commands).
const (
	CmdOperation     byte = 0x01
	CmdOnOffConfig   byte = 0x02
	CmdClearFaults   byte = 0x03
	CmdPhase         byte = 0x04
	CmdCapability    byte = 0x19
	CmdVoutMode      byte = 0x20
	CmdVoutCommand   byte = 0x21
	CmdVoutMax       byte = 0x24
	CmdVoutMarginHigh byte = 0x25
	CmdVoutMarginLow  byte = 0x26
	CmdVoutScaleLoop  byte = 0x29
	CmdVoutMin        byte = 0x2B
	CmdFrequencySwitch byte = 0x33
	CmdInterleave      byte = 0x37
	CmdVinOn          byte = 0x35
	CmdVinOff         byte = 0x36
	CmdVoutOVFaultLimit byte = 0x40
	CmdVoutOVWarnLimit  byte = 0x42
	CmdVoutUVWarnLimit  byte = 0x43
	CmdVoutUVFaultLimit byte = 0x44
	CmdIoutOCFaultLimit byte = 0x46
	CmdIoutOCFaultResponse byte = 0x47
	CmdIoutOCWarnLimit  byte = 0x4A
	CmdOTFaultLimit     byte = 0x4F
	CmdOTFaultResponse  byte = 0x50
	CmdOTWarnLimit      byte = 0x51
	CmdVinOVFaultLimit  byte = 0x55
	CmdVinOVFaultResponse byte = 0x56
	CmdVinUVWarnLimit   byte = 0x58
	CmdTonDelay         byte = 0x60
	CmdTonRise          byte = 0x61
	CmdTonMaxFaultLimit byte = 0x62
	CmdTonMaxFaultResponse byte = 0x63
	CmdToffDelay        byte = 0x64
	CmdToffFall         byte = 0x65
	CmdStatusWord       byte = 0x79
	CmdStatusVout       byte = 0x7A
	CmdStatusIout       byte = 0x7B
	CmdStatusInput      byte = 0x7C
	CmdStatusTemperature byte = 0x7D
	CmdStatusCML        byte = 0x7E
	CmdStatusOther      byte = 0x7F
	CmdStatusMfrSpecific byte = 0x80
	CmdReadVin          byte = 0x88
	CmdReadVout         byte = 0x8B
	CmdReadIout         byte = 0x8C
	CmdReadTemperature1 byte = 0x8D
	CmdMfrID            byte = 0x99
	CmdMfrModel         byte = 0x9A
	CmdMfrRevision      byte = 0x9B
	CmdICDeviceID       byte = 0xAD
	CmdCompensationConfig byte = 0xB1
	CmdSyncConfig       byte = 0xE4
	CmdStackConfig      byte = 0xEC
	CmdPinDetectOverride byte = 0xEE
)

// STATUS_WORD bits (PMBus specification section 17.2).
const (
	StatusWordVout    uint16 = 0x8000
	StatusWordIout    uint16 = 0x4000
	StatusWordInput   uint16 = 0x2000
	StatusWordMfr     uint16 = 0x1000
	StatusWordPgood   uint16 = 0x0800
	StatusWordFans    uint16 = 0x0400
	StatusWordOther   uint16 = 0x0200
	StatusWordUnknown uint16 = 0x0100
	StatusWordBusy    uint16 = 0x0080
	StatusWordOff     uint16 = 0x0040
	StatusWordVoutOV  uint16 = 0x0020
	StatusWordIoutOC  uint16 = 0x0010
	StatusWordVinUV   uint16 = 0x0008
	StatusWordTemp    uint16 = 0x0004
	StatusWordCML     uint16 = 0x0002
	StatusWordNone    uint16 = 0x0001
)

// STATUS_VOUT bits (PMBus specification section 17.7).
const (
	StatusVoutOVFault   byte = 0x80
	StatusVoutOVWarn    byte = 0x40
	StatusVoutUVWarn    byte = 0x20
	StatusVoutUVFault   byte = 0x10
	StatusVoutMax       byte = 0x08
	StatusVoutTonMaxFault byte = 0x02
	StatusVoutMin       byte = 0x01
)

// STATUS_IOUT bits (PMBus specification section 17.8).
const (
	StatusIoutOCFault    byte = 0x80
	StatusIoutOCLVFault  byte = 0x40
	StatusIoutOCWarn     byte = 0x20
	StatusIoutUCFault    byte = 0x10
	StatusIoutCurrShareFault byte = 0x08
	StatusIoutInPwrLim   byte = 0x04
	StatusIoutPoutOPFault byte = 0x02
	StatusIoutPoutOPWarn byte = 0x01
)

// STATUS_INPUT bits (PMBus specification section 17.9).
const (
	StatusInputVinOVFault     byte = 0x80
	StatusInputVinOVWarn      byte = 0x40
	StatusInputVinUVWarn      byte = 0x20
	StatusInputVinUVFault     byte = 0x10
	StatusInputUnitOffVinLow  byte = 0x08
	StatusInputIinOCFault     byte = 0x04
	StatusInputIinOCWarn      byte = 0x02
	StatusInputPinOPWarn      byte = 0x01
)

// STATUS_TEMPERATURE bits (PMBus specification section 17.10).
const (
	StatusTempOTFault byte = 0x80
	StatusTempOTWarn  byte = 0x40
	StatusTempUTWarn  byte = 0x20
	StatusTempUTFault byte = 0x10
)

// STATUS_CML bits (PMBus specification section 17.11).
const (
	StatusCMLInvalidCmd     byte = 0x80
	StatusCMLInvalidData    byte = 0x40
	StatusCMLPECFault       byte = 0x20
	StatusCMLMemoryFault    byte = 0x10
	StatusCMLProcessorFault byte = 0x08
	StatusCMLOtherCommFault byte = 0x02
	StatusCMLOtherMemLogic  byte = 0x01
)

// OPERATION command values (PMBus specification section 12.1).
const (
	OperationOffImmediate byte = 0x00
	OperationSoftOff      byte = 0x40
	OperationOnMarginLow  byte = 0x98
	OperationOnMarginHigh byte = 0xA8
	OperationOn           byte = 0x80
)

// ON_OFF_CONFIG bits (PMBus specification section 12.2).
const (
	OnOffConfigPU       byte = 0x10
	OnOffConfigCMD      byte = 0x08
	OnOffConfigCP       byte = 0x04
	OnOffConfigPolarity byte = 0x02
	OnOffConfigDelay    byte = 0x01
)
