package types

const (
	// MetaFullPath is the metadata key holding the document's unique path.
	MetaFullPath = "full_path"
	// MetaSourceTitle is the metadata key holding a human readable source label.
	MetaSourceTitle = "source_title"
)

// Document is one entry of the corpus. Documents are produced by ingestion and
// never modified afterwards; the rest of the system only copies them around.
type Document struct {
	Content  string            `json:"page_content"`
	Metadata map[string]string `json:"metadata"`
}

// NewDocument builds a document keyed by path.
func NewDocument(path, title, content string) Document {
	return Document{
		Content: content,
		Metadata: map[string]string{
			MetaFullPath:    path,
			MetaSourceTitle: title,
		},
	}
}

// Key returns the document identity, its full path.
func (d Document) Key() string {
	return d.Metadata[MetaFullPath]
}

// Title returns the source label, or an empty string.
func (d Document) Title() string {
	return d.Metadata[MetaSourceTitle]
}

// Progress reports how far a multi-step operation (e.g. ingestion) got.
type Progress struct {
	Fraction float64
	Message  string
}

// Turn is one completed exchange of a conversation.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}
