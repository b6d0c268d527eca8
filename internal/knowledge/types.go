package knowledge

// Metadata keys attached to documents by the loaders.
const (
	// MetaSource records where a document came from: SourceTopicMap for
	// topic-map entries, the file path for directory documents.
	MetaSource = "source"

	// MetaTopic is the topic-map key a document was built from.
	MetaTopic = "topic"

	// MetaFiletype is the extension-derived type of a file document
	// ("pdf", "docx", "txt").
	MetaFiletype = "filetype"
)

// SourceTopicMap is the MetaSource value for topic-map documents.
const SourceTopicMap = "knowledge_base"

// Document is a unit of knowledge text with provenance metadata.
// Documents are immutable once created; the splitter produces new Documents
// (chunks) rather than mutating their parent.
type Document struct {
	Content  string
	Metadata map[string]string
}

// cloneMetadata returns an independent copy of m so chunks split from the
// same parent never share a map.
func cloneMetadata(m map[string]string) map[string]string {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
