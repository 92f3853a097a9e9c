package protocol

// FileMetadata announces a new file on the stream. It is sent as a Name
// record followed by a Pieces record.
type FileMetadata struct {
	Name         string
	PiecesAmount uint64
}

// Piece is one contiguous slice of the source file.
// len(Data) == Size. Checksum is only meaningful when the stream
// preamble has FlagChecksums set.
type Piece struct {
	ID       uint64
	Size     uint64
	Checksum uint64
	Data     []byte
}
