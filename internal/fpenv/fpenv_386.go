//go:build 386

package fpenv

// x87 control word fields, per the IA-32 manual.
const (
	maskRounding  = 0x0c00 // RC field
	maskPrecision = 0x0300 // PC field

	roundingChop  = 0x0c00 // round toward zero
	precisionFull = 0x0300 // 64-bit significand
	referenceWord = roundingChop | precisionFull
	referenceMask = maskRounding | maskPrecision
)

// Implemented in fpenv_386.s.
func getControlWord() uint16
func setControlWord(cw uint16)

func acquire() *Context {
	saved := getControlWord()
	setControlWord((saved &^ referenceMask) | referenceWord)

	return &Context{saved: saved}
}

func (c *Context) release() {
	setControlWord(c.saved)
}
