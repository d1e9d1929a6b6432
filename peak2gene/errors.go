package peak2gene

import "errors"

var errNoPairedCells = errors.New("peak2gene: no paired cells carry pseudotime and matrix columns")
