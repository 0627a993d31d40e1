package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest  = "E_PROTO_BAD_REQUEST"
	ErrProtoUnsupported = "E_PROTO_UNSUPPORTED"
	ErrProtoHandshake   = "E_PROTO_HANDSHAKE"

	// Session state.
	ErrNotLoaded = "E_NOT_LOADED"
	ErrBusy      = "E_BUSY"

	// Selector inputs.
	ErrBadInput    = "E_BAD_INPUT"
	ErrUnknownGrid = "E_UNKNOWN_GRID"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrProtoUnsupported: {},
	ErrProtoHandshake:   {},
	ErrNotLoaded:        {},
	ErrBusy:             {},
	ErrBadInput:         {},
	ErrUnknownGrid:      {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
