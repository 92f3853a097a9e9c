package protocol

import "errors"

var ErrZeroPieceLength = errors.New("piece length must be greater than zero")

// ComputeOffsets returns the start offset of every piece of a file of
// fileSize bytes cut into pieceLength-byte pieces. The last piece may be
// shorter. An empty file has no pieces.
func ComputeOffsets(fileSize, pieceLength uint64) ([]uint64, error) {
	if pieceLength == 0 {
		return nil, ErrZeroPieceLength
	}

	offsets := make([]uint64, 0, PieceCount(fileSize, pieceLength))
	var offset uint64
	for offset < fileSize {
		offsets = append(offsets, offset)
		// avoid overflow for sizes near math.MaxUint64
		if fileSize-offset <= pieceLength {
			offset = fileSize
		} else {
			offset += pieceLength
		}
	}
	return offsets, nil
}

// PieceCount is ceil(fileSize / pieceLength), or 0 when pieceLength is 0.
func PieceCount(fileSize, pieceLength uint64) uint64 {
	if pieceLength == 0 {
		return 0
	}
	n := fileSize / pieceLength
	if fileSize%pieceLength != 0 {
		n++
	}
	return n
}

// PieceSize returns the byte length of piece i given the planned offsets.
func PieceSize(offsets []uint64, i int, fileSize uint64) uint64 {
	if i+1 < len(offsets) {
		return offsets[i+1] - offsets[i]
	}
	return fileSize - offsets[i]
}
