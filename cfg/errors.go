package cfg

import (
	"errors"
	"fmt"
)

// ErrMalformedIR is wrapped by every construction fault. Such faults point at
// a bug in whatever produced the IR and are not meant to be worked around.
var ErrMalformedIR = errors.New("malformed IR")

var (
	ErrEmptyFunction = fmt.Errorf("%w: empty instruction sequence", ErrMalformedIR)
	ErrUnknownLabel  = fmt.Errorf("%w: jump to unknown label", ErrMalformedIR)
	ErrNonContiguous = fmt.Errorf("%w: non-contiguous instruction numbering", ErrMalformedIR)
)
