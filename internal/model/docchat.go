// Package model defines the request and response types for the document
// chat service.
package model

// ChatMessage is one entry in the conversation history sent with a query.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Status marks assistant messages; only "success" messages are
	// injected into the prompt transcript.
	Status string `json:"status,omitempty"`
}

// UploadResult is the response body for a document upload.
type UploadResult struct {
	SessionID     string `json:"sessionId"`
	FileName      string `json:"fileName"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	FileType      string `json:"fileType"`
	CharCount     int    `json:"charCount"`
	WordCount     int    `json:"wordCount"`
	PageCount     int    `json:"pageCount"`
	ChunkCount    int    `json:"chunkCount"`
}

// StoredChunk is one embedded slice of an uploaded document.
type StoredChunk struct {
	SessionID  string    `json:"sessionId"`
	DocumentID string    `json:"documentId"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	FileName   string    `json:"fileName"`
}

// QueryResult pairs a retrieved chunk with its similarity score.
type QueryResult struct {
	Chunk StoredChunk `json:"chunk"`
	Score float64     `json:"score"`
}

// QueryDebug carries retrieval telemetry returned alongside an answer.
type QueryDebug struct {
	TotalStoredChunks int     `json:"totalStoredChunks"`
	RetrievedChunks   int     `json:"retrievedChunks"`
	TopScore          float64 `json:"topScore"`
}

// QueryResponse is the response body for a query.
type QueryResponse struct {
	Answer  string        `json:"answer"`
	Results []QueryResult `json:"results"`
	Debug   QueryDebug    `json:"debug"`
}

// QueryRequest is the request body for a query. TopK and
// SimilarityThreshold are pointers so an explicit zero can be told apart
// from an omitted field.
type QueryRequest struct {
	Query               string        `json:"query"`
	History             []ChatMessage `json:"history"`
	TopK                *int          `json:"topK"`
	SimilarityThreshold *float64      `json:"similarityThreshold"`
}

// ResetResult is the response body for a session reset.
type ResetResult struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
}

// SessionStats reports per-session storage state.
type SessionStats struct {
	SessionID   string `json:"sessionId"`
	ChunkCount  int    `json:"chunkCount"`
	StoreName   string `json:"store"`
	CacheActive bool   `json:"cacheActive"`
}
