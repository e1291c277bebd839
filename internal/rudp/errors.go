package rudp

import "github.com/duskline/rpcore/internal/errs"

var errShortBuffer = errs.New(errs.InvalidData, "rudp.parse", nil)
