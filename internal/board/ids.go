package board

// Source IDs carried by events on the bus. Each peripheral owns one ID;
// the pin bank owns a contiguous run starting at IDFirstPin.
const (
	IDButtonA     = 1
	IDButtonB     = 2
	IDButtonReset = 3
	IDDisplay     = 6
	IDFirstPin    = 7 // P0; the bank runs through IDFirstPin+18
	IDThermometer = 28
	IDSerial      = 30
	IDTicker      = 31
	IDPairing     = 32
)
