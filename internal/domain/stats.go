package domain

// FileStatus values reported per uploaded file
const (
	FileStatusSuccess = "success"
	FileStatusSkipped = "skipped"
	FileStatusFailed  = "failed"
)

// FileStat is the outcome of ingesting one file
type FileStat struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

// IngestStats summarises one batch of uploads
type IngestStats struct {
	FilesProcessed int        `json:"files_processed"`
	TotalChunks    int        `json:"total_chunks"`
	PerFile        []FileStat `json:"per_file_stats"`
	FailedFiles    []string   `json:"failed_files"`
	SkippedFiles   []string   `json:"skipped_files"`
}

// Add records a file outcome and updates the counters.
func (s *IngestStats) Add(stat FileStat) {
	s.PerFile = append(s.PerFile, stat)
	switch stat.Status {
	case FileStatusSuccess:
		s.FilesProcessed++
		s.TotalChunks += stat.Chunks
	case FileStatusSkipped:
		s.SkippedFiles = append(s.SkippedFiles, stat.Filename)
	default:
		s.FailedFiles = append(s.FailedFiles, stat.Filename)
	}
}

// KnowledgeStats describes the contents of the vector store
type KnowledgeStats struct {
	TotalChunks int      `json:"total_chunks"`
	Files       []string `json:"files"`
}

// Role of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a session's chat history
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Answer is the result of the query pipeline
type Answer struct {
	Question string         `json:"question"`
	Text     string         `json:"answer"`
	Sources  []SearchResult `json:"-"`
	Context  string         `json:"-"`
}
