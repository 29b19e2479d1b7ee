package ingestion_engine

// Chunk is one fixed-size slice of a document's text.
//
// DocumentID: the owning document.
// Ordinal:    zero-based position inside the document.
// Text:       at most ChunkSize characters; only the last chunk may be shorter.
type Chunk struct {
	DocumentID string
	Ordinal    int
	Text       string
}

// SplitText cuts text into consecutive pieces of size runes with no
// overlap. Concatenating the pieces in order reproduces text exactly.
// Empty text yields no pieces.
func SplitText(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// ChunkDocument splits a document's text into Chunks tagged with its ID.
func ChunkDocument(documentID, text string, size int) []Chunk {
	pieces := SplitText(text, size)
	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{DocumentID: documentID, Ordinal: i, Text: p}
	}
	return chunks
}

// wholeDocument is the single unit indexed under document granularity.
func wholeDocument(documentID, text string) []Chunk {
	if text == "" {
		return nil
	}
	return []Chunk{{DocumentID: documentID, Ordinal: 0, Text: text}}
}
