package storage

// WriteResult describes one persisted markdown file.
type WriteResult struct {
	path        string
	filename    string
	contentHash string
}

func NewWriteResult(path string, filename string, contentHash string) WriteResult {
	return WriteResult{
		path:        path,
		filename:    filename,
		contentHash: contentHash,
	}
}

func (w WriteResult) Path() string        { return w.path }
func (w WriteResult) Filename() string    { return w.filename }
func (w WriteResult) ContentHash() string { return w.contentHash }
