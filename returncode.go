package hxc

import "fmt"

// ReturnCode is the client-visible outcome of an operation.
type ReturnCode int

const (
	SUCCESS ReturnCode = iota
	NOTFOUND
	WRONGARITY
	NOTASPACE
	BADSEARCH
	BADDIMENSION
	COORDFAIL
	CONNECTFAIL
	DISCONNECT
	RECONFIGURE
	TIMEOUT
	SERVERERROR
	LOGICERROR
)

func (c ReturnCode) String() string {
	switch c {
	case SUCCESS:
		return "SUCCESS"
	case NOTFOUND:
		return "NOTFOUND"
	case WRONGARITY:
		return "WRONGARITY"
	case NOTASPACE:
		return "NOTASPACE"
	case BADSEARCH:
		return "BADSEARCH"
	case BADDIMENSION:
		return "BADDIMENSION"
	case COORDFAIL:
		return "COORDFAIL"
	case CONNECTFAIL:
		return "CONNECTFAIL"
	case DISCONNECT:
		return "DISCONNECT"
	case RECONFIGURE:
		return "RECONFIGURE"
	case TIMEOUT:
		return "TIMEOUT"
	case SERVERERROR:
		return "SERVERERROR"
	case LOGICERROR:
		return "LOGICERROR"
	default:
		return fmt.Sprintf("ReturnCode(%d)", int(c))
	}
}

// Error implements the error interface so a ReturnCode can be returned
// directly from synchronous validation paths (NOTASPACE, BADSEARCH,
// BADDIMENSION) without an extra wrapper type.
func (c ReturnCode) Error() string {
	return c.String()
}
