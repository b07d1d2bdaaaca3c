package pmbus

// StatusDecoder turns raw PMBus status registers into human-readable
// descriptions for logging and the status API.
type StatusDecoder struct{}

func (StatusDecoder) DecodeStatusWord(status uint16) []string {
	var desc []string
	add := func(bit uint16, s string) {
		if status&bit != 0 {
			desc = append(desc, s)
		}
	}
	add(StatusWordVout, "VOUT fault/warning")
	add(StatusWordIout, "IOUT fault/warning")
	add(StatusWordInput, "INPUT fault/warning")
	add(StatusWordMfr, "MFR specific")
	add(StatusWordPgood, "PGOOD")
	add(StatusWordFans, "fan fault/warning")
	add(StatusWordOther, "other fault/warning")
	add(StatusWordUnknown, "unknown fault/warning")
	add(StatusWordBusy, "busy")
	add(StatusWordOff, "unit off")
	add(StatusWordVoutOV, "output overvoltage fault")
	add(StatusWordIoutOC, "output overcurrent fault")
	add(StatusWordVinUV, "input undervoltage fault")
	add(StatusWordTemp, "temperature fault/warning")
	add(StatusWordCML, "communication/logic/memory fault")
	return desc
}

func (StatusDecoder) DecodeStatusVout(status byte) []string {
	var desc []string
	add := func(bit byte, s string) {
		if status&bit != 0 {
			desc = append(desc, s)
		}
	}
	add(StatusVoutOVFault, "output overvoltage fault")
	add(StatusVoutOVWarn, "output overvoltage warning")
	add(StatusVoutUVWarn, "output undervoltage warning")
	add(StatusVoutUVFault, "output undervoltage fault")
	add(StatusVoutMax, "vout at max")
	add(StatusVoutTonMaxFault, "unit did not power up")
	add(StatusVoutMin, "vout at min")
	return desc
}

func (StatusDecoder) DecodeStatusIout(status byte) []string {
	var desc []string
	add := func(bit byte, s string) {
		if status&bit != 0 {
			desc = append(desc, s)
		}
	}
	add(StatusIoutOCFault, "output overcurrent fault")
	add(StatusIoutOCLVFault, "output OC and low voltage fault")
	add(StatusIoutOCWarn, "output overcurrent warning")
	add(StatusIoutUCFault, "output undercurrent fault")
	add(StatusIoutCurrShareFault, "current share fault")
	add(StatusIoutInPwrLim, "power limiting")
	add(StatusIoutPoutOPFault, "output overpower fault")
	add(StatusIoutPoutOPWarn, "output overpower warning")
	return desc
}

func (StatusDecoder) DecodeStatusInput(status byte) []string {
	var desc []string
	add := func(bit byte, s string) {
		if status&bit != 0 {
			desc = append(desc, s)
		}
	}
	add(StatusInputVinOVFault, "input overvoltage fault")
	add(StatusInputVinOVWarn, "input overvoltage warning")
	add(StatusInputVinUVWarn, "input undervoltage warning")
	add(StatusInputVinUVFault, "input undervoltage fault")
	add(StatusInputUnitOffVinLow, "unit off, input too low")
	add(StatusInputIinOCFault, "input overcurrent fault")
	add(StatusInputIinOCWarn, "input overcurrent warning")
	add(StatusInputPinOPWarn, "input overpower warning")
	return desc
}

func (StatusDecoder) DecodeStatusTemperature(status byte) []string {
	var desc []string
	add := func(bit byte, s string) {
		if status&bit != 0 {
			desc = append(desc, s)
		}
	}
	add(StatusTempOTFault, "overtemperature fault")
	add(StatusTempOTWarn, "overtemperature warning")
	add(StatusTempUTWarn, "undertemperature warning")
	add(StatusTempUTFault, "undertemperature fault")
	return desc
}

func (StatusDecoder) DecodeStatusCML(status byte) []string {
	var desc []string
	add := func(bit byte, s string) {
		if status&bit != 0 {
			desc = append(desc, s)
		}
	}
	add(StatusCMLInvalidCmd, "invalid/unsupported command")
	add(StatusCMLInvalidData, "invalid/unsupported data")
	add(StatusCMLPECFault, "packet error check failed")
	add(StatusCMLMemoryFault, "memory fault")
	add(StatusCMLProcessorFault, "processor fault")
	add(StatusCMLOtherCommFault, "other communication fault")
	add(StatusCMLOtherMemLogic, "other memory or logic fault")
	return desc
}

// IsCritical reports whether status_word indicates a fault that must stop
// the regulator, as opposed to a warning that can be logged and monitored.
func IsCritical(statusWord uint16) bool {
	const criticalMask = StatusWordVoutOV | StatusWordIoutOC | StatusWordVinUV | StatusWordTemp | StatusWordCML
	return statusWord&criticalMask != 0
}
