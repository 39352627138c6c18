package types

// MediaFile is a file selected for upload, held fully in memory.
type MediaFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the file length in bytes.
func (f MediaFile) Size() int64 {
	return int64(len(f.Data))
}
