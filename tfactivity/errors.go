package tfactivity

import "errors"

var (
	errNoPairedCells = errors.New("tfactivity: no paired cells carry pseudotime and matrix columns")
	errNoLinkedPeaks = errors.New("tfactivity: none of the linked peaks are present in the hit matrix")
)
