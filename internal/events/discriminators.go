package events

// Discriminators identify the event type encoded in the first 8 bytes of
// every "Program data:" log line emitted by the origin program. These
// values come from the program's IDL and must match byte for byte.
var (
	TokenCreatedDiscriminator      = [8]byte{96, 122, 113, 138, 50, 227, 149, 57}
	BuySellDiscriminator           = [8]byte{98, 208, 120, 60, 93, 32, 19, 180}
	LongShortDiscriminator         = [8]byte{27, 69, 20, 116, 58, 250, 95, 220}
	FullCloseDiscriminator         = [8]byte{22, 244, 113, 245, 154, 168, 109, 139}
	PartialCloseDiscriminator      = [8]byte{133, 94, 3, 222, 24, 68, 69, 155}
	MilestoneDiscountDiscriminator = [8]byte{130, 232, 11, 37, 34, 185, 136, 128}
)
