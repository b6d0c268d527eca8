package knowledge

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/campusbot/campusbot/internal/log"
)

// LoadTopicMap loads a structured knowledge base from a JSON file containing
// a flat object of topic → answer text. Each entry becomes one Document whose
// content is prefixed with the topic as a heading. Entries are returned in
// sorted topic order so repeated loads produce identical document sequences.
func LoadTopicMap(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topic map %q: %w", path, err)
	}

	var topics map[string]string
	if err := json.Unmarshal(data, &topics); err != nil {
		return nil, fmt.Errorf("parsing topic map %q: %w", path, err)
	}

	keys := make([]string, 0, len(topics))
	for topic := range topics {
		keys = append(keys, topic)
	}
	sort.Strings(keys)

	docs := make([]Document, 0, len(keys))
	for _, topic := range keys {
		docs = append(docs, Document{
			Content: fmt.Sprintf("# %s\n\n%s", topic, topics[topic]),
			Metadata: map[string]string{
				MetaSource: SourceTopicMap,
				MetaTopic:  topic,
			},
		})
	}
	return docs, nil
}

// LoadDirectory loads one document per supported file (.pdf, .docx, .txt) in
// dir. Unsupported extensions are silently skipped. A file that cannot be
// read or parsed is logged and skipped rather than failing the batch; the
// returned count reports how many files failed that way.
func LoadDirectory(dir string, logger log.Logger) ([]Document, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("reading knowledge directory %q: %w", dir, err)
	}

	var docs []Document
	failed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))

		var text string
		var extractErr error
		switch ext {
		case ".pdf":
			text, extractErr = extractPDF(path)
		case ".docx":
			text, extractErr = extractDOCX(path)
		case ".txt":
			var raw []byte
			raw, extractErr = os.ReadFile(path)
			text = string(raw)
		default:
			continue
		}

		if extractErr != nil {
			failed++
			logger.Warn("skipping unreadable knowledge file",
				"path", path, "error", extractErr)
			continue
		}

		docs = append(docs, Document{
			Content: text,
			Metadata: map[string]string{
				MetaSource:   path,
				MetaFiletype: strings.TrimPrefix(ext, "."),
			},
		})
	}

	return docs, failed, nil
}

// extractPDF extracts the plain text of every page of a PDF file.
func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// extractDOCX extracts paragraph text from a DOCX file. A .docx is a ZIP
// archive whose word/document.xml holds the body as WordprocessingML; text
// lives in <w:t> runs and paragraphs end at </w:p>.
func extractDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}
	defer archive.Close()

	var doc *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx %q: missing word/document.xml", path)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("opening docx body: %w", err)
	}
	defer rc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing docx body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
