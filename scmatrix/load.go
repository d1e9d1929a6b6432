package scmatrix

import (
	"io"

	"github.com/carbocation/pfx"
	"github.com/cardiogenomics/fibronet"
)

// Load reads a matrix from disk or URL, transparently decompressed. With
// featuresPath and barcodesPath set it expects the MatrixMarket triplet
// layout; otherwise a dense table with a header row and feature column.
func Load(matrixPath, featuresPath, barcodesPath string) (*Matrix, error) {
	matrixBytes, err := fibronet.OpenFileOrURL(matrixPath)
	if err != nil {
		return nil, err
	}

	if featuresPath == "" && barcodesPath == "" {
		r, err := fibronet.MaybeDecompressBytes(matrixBytes)
		if err != nil {
			return nil, pfx.Err(err)
		}
		plain, err := io.ReadAll(r)
		if err != nil {
			return nil, pfx.Err(err)
		}
		return ReadDenseTSV(plain)
	}

	features, err := loadNames(featuresPath)
	if err != nil {
		return nil, err
	}
	barcodes, err := loadNames(barcodesPath)
	if err != nil {
		return nil, err
	}

	mr, err := fibronet.MaybeDecompressBytes(matrixBytes)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return ReadMatrixMarket(mr, features, barcodes)
}

func loadNames(path string) ([]string, error) {
	b, err := fibronet.OpenFileOrURL(path)
	if err != nil {
		return nil, err
	}

	r, err := fibronet.MaybeDecompressBytes(b)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return ReadNames(r)
}
